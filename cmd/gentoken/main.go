package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/eldtechnologies/carebot/internal/api/middleware"
)

func main() {
	token := flag.String("token", "", "Token to hash (a random one is generated if empty)")
	flag.Parse()

	if *token == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			panic(err)
		}
		*token = base64.RawURLEncoding.EncodeToString(raw)
	}

	hash, err := middleware.HashToken(*token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API token:              %s\n", *token)
	fmt.Printf("CAREBOT_API_TOKEN_HASH: %s\n", hash)
}

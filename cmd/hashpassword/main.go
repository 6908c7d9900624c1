// Command hashpassword prints a bcrypt hash for seeding accounts by hand.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"bengkel/internal/auth"
	"bengkel/internal/models"
)

func main() {
	password, err := readPassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	hash, err := auth.NewBcryptHasher(models.DefaultBcryptCost).Hash(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

// readPassword takes the first argument, or one line from stdin.
func readPassword() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("usage: hashpassword <password> (or pipe it on stdin)")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return password, nil
}

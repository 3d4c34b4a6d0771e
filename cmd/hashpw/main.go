// Command hashpw generates the bcrypt password hash expected in
// AUTH_PASSWORD_HASH for operator login.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/thomasjamais/bitget-agent-sub001/internal/auth"
)

func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read password: %v\n", err)
			os.Exit(1)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hash, err := auth.NewPasswordManager(auth.DefaultBcryptCost).HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

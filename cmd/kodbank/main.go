// Command kodbank は口座間送金とトークン認証を提供するAPIサーバー。
//
// 使い方:
//
//	kodbank [serve|migrate|cleanup|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/kodbank/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "kodbank: %v\n", err)
		os.Exit(1)
	}
}

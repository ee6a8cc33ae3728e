// Package main implements inkctl, the operator CLI for the Inkwell API. It
// runs database migrations, grants and inspects credits, previews job costs
// and mints access tokens for local testing.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}

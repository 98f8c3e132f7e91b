// Command userdir はユーザーディレクトリの読み取りAPIサーバーと運用向けCLIを提供する。
package main

import (
	"errors"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/hitoshi/userdir/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, app.ErrUserNotFound) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

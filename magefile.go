//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var (
	binDir  = "bin"
	appName = "merukart-web"
)

var Default = Dev

// Dev runs tidy, then air if available, else go run.
func Dev() error {
	mg.Deps(Tidy)

	if _, err := exec.LookPath("air"); err == nil {
		fmt.Println("Starting hot-reload with air ...")
		return sh.RunV("air")
	}

	fmt.Println("air not found. Falling back to `go run ./cmd/web`.")
	return Run()
}

func Run() error {
	fmt.Println("Running (go run) on :8080 ...")
	return sh.RunV("go", "run", "./cmd/web")
}

func Build() error {
	mg.Deps(Tidy)
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(binDir, appName)
	fmt.Printf("Building %s ...\n", out)
	return sh.RunV("go", "build", "-o", out, "./cmd/web")
}

func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

func Test() error {
	return sh.RunV("go", "test", "./...")
}

func Lint() error {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		return fmt.Errorf("golangci-lint not found. Install: https://golangci-lint.run")
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Reconcile runs the reconciliation batch against DB_DSN.
func Reconcile() error {
	return sh.RunV("go", "run", "./cmd/tools/reconcile")
}

// ExpireCoins runs the coin-expiry sweep against DB_DSN.
func ExpireCoins() error {
	return sh.RunV("go", "run", "./cmd/tools/expirecoins", "-loop")
}

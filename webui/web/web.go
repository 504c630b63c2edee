// Package web holds the page template and stylesheet of the code generator.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// DevModeEnv names the variable that makes Assets read the files from the
// source tree, so edits show up without rebuilding.
const DevModeEnv = "DOCCODE_WEB_DEV"

//go:embed dist/*
var dist embed.FS

// Assets returns the files under dist, embedded or from disk in development
// mode.
func Assets() http.FileSystem {
	if devMode() {
		dir := sourceDir()
		fmt.Fprintf(os.Stderr, "Serving web assets from %s\n", dir)

		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func sourceDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the web package source")
	}

	return filepath.Join(filepath.Dir(file), "dist")
}

func devMode() bool {
	on, err := strconv.ParseBool(os.Getenv(DevModeEnv))
	return err == nil && on
}

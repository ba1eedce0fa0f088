// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"os"

	"github.com/pgmirror/pgmirror/cmd"
	"github.com/pgmirror/pgmirror/pkg/schema"
	pgsync "github.com/pgmirror/pgmirror/pkg/sync"
)

func main() {
	os.Exit(run())
}

func run() int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	var configErr pgsync.ConfigError
	var rdsErr pgsync.RDSError
	var schemaErr schema.SchemaError
	var cycleErr schema.CycleError
	var dupErr schema.DuplicateChildError
	isValidationError := errors.As(err, &configErr) ||
		errors.As(err, &rdsErr) ||
		errors.As(err, &schemaErr) ||
		errors.As(err, &cycleErr) ||
		errors.As(err, &dupErr)
	if isValidationError {
		return 1
	}
	return 2
}

// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/geosint/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}

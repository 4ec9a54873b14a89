// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the deskshare server's YAML configuration.
//
// The file is named by the --config flag (via [LoadFile]) or the
// DESKSHARE_CONFIG environment variable (via [Load]). There is no
// search path. Keys the file omits keep the values from [Default], and
// keys the file does not know are rejected.
//
// Path fields expand ${VAR} and ${VAR:-default} from the environment
// after loading. No other environment variables override config values.
//
// This package depends on no other deskshare packages.
package config

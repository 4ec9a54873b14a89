// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build of deskshare binaries.
//
// [Version], [GitCommit], [GitDirty] and [BuildTime] are injected with
// -ldflags -X. A plain "go build" leaves them unset; the commit and
// dirty flag then come from the VCS stamp the toolchain embeds, when
// there is one.
package version

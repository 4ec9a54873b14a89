// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bureau-foundation/deskshare/protocol"
	"github.com/bureau-foundation/deskshare/server"
)

// adminTimeout bounds one admin command, including a disconnect's
// goodbye.
const adminTimeout = 15 * time.Second

// runAdminCommand sends command to the admin socket and writes the
// result to out as indented JSON.
func runAdminCommand(ctx context.Context, socketPath string, command []string, opts options, out io.Writer) error {
	if socketPath == "" {
		return fmt.Errorf("%s: no admin socket configured", command[0])
	}
	request, err := adminRequest(command, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, adminTimeout)
	defer cancel()

	var result any
	if err := server.AdminCall(ctx, socketPath, request, &result); err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func adminRequest(command []string, opts options) (server.AdminRequest, error) {
	action, args := command[0], command[1:]
	request := server.AdminRequest{Action: action}
	switch action {
	case server.ActionListScreens, server.ActionStatus:
		if len(args) != 0 {
			return request, fmt.Errorf("%s takes no arguments", action)
		}
	case server.ActionDisconnectScreen, server.ActionClipboard:
		if len(args) != 1 {
			return request, fmt.Errorf("usage: %s NAME", action)
		}
		request.Screen = args[0]
		if action == server.ActionClipboard && opts.selection {
			request.Clipboard = uint8(protocol.ClipboardSelection)
		}
	default:
		return request, fmt.Errorf("unknown command %q (want %s, %s, %s or %s)", action,
			server.ActionListScreens, server.ActionStatus, server.ActionClipboard, server.ActionDisconnectScreen)
	}
	if opts.selection && action != server.ActionClipboard {
		return request, fmt.Errorf("--selection applies only to %s", server.ActionClipboard)
	}
	return request, nil
}

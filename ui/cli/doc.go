// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the command-line interface for dcprovision using
// Cobra. It loads configuration, builds a bootstrap.RunInfo and delegates all
// provisioning work to internal/bootstrap.
package cli

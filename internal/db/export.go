// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/toeirei/dcprovision/internal/ldif"
)

// Export writes every record below base (all records when base is empty) as
// LDIF. With compress set the stream is zstd framed.
func Export(ctx context.Context, s Store, base string, w io.Writer, compress bool) (int, error) {
	entries, err := s.Search(ctx, base, ScopeSubtree, "", nil)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	out := w
	var enc *zstd.Encoder
	if compress {
		enc, err = zstd.NewWriter(w)
		if err != nil {
			return 0, fmt.Errorf("export: %w", err)
		}
		out = enc
	}
	if err := ldif.Write(out, entries); err != nil {
		if enc != nil {
			_ = enc.Close()
		}
		return 0, fmt.Errorf("export: %w", err)
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			return 0, fmt.Errorf("export: %w", err)
		}
	}
	return len(entries), nil
}

// ReadExport decodes an export produced by Export, transparently handling
// zstd compressed input.
func ReadExport(r io.Reader) ([]*ldif.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompress export: %w", err)
		}
	}
	return ldif.Parse(strings.TrimSpace(string(data)))
}

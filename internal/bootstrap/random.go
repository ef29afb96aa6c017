// Copyright (c) 2026 ToeiRei
// dcprovision - directory service provisioning
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/google/uuid"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789+_-#.,"

// Random is the generator owned by one run. Identifiers and passwords it
// hands out never repeat within the run.
type Random struct {
	mu   sync.Mutex
	src  io.Reader
	seen map[string]struct{}
}

// NewRandom returns a generator reading from src, or from crypto/rand when
// src is nil.
func NewRandom(src io.Reader) *Random {
	if src == nil {
		src = rand.Reader
	}
	return &Random{src: src, seen: map[string]struct{}{}}
}

func (r *Random) unique(gen func() (string, error)) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < 64; i++ {
		v, err := gen()
		if err != nil {
			return "", err
		}
		if _, dup := r.seen[v]; dup {
			continue
		}
		r.seen[v] = struct{}{}
		return v, nil
	}
	return "", fmt.Errorf("random source keeps repeating values")
}

// GUID returns a fresh version 4 UUID.
func (r *Random) GUID() (string, error) {
	return r.unique(func() (string, error) {
		u, err := uuid.NewRandomFromReader(r.src)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	})
}

// SID returns a fresh domain security identifier S-1-5-21-a-b-c.
func (r *Random) SID() (string, error) {
	return r.unique(func() (string, error) {
		var sub [3]uint32
		if err := binary.Read(r.src, binary.LittleEndian, &sub); err != nil {
			return "", err
		}
		return fmt.Sprintf("S-1-5-21-%d-%d-%d", sub[0], sub[1], sub[2]), nil
	})
}

// Password returns a fresh password of n characters drawn uniformly from
// passwordAlphabet.
func (r *Random) Password(n int) (string, error) {
	size := big.NewInt(int64(len(passwordAlphabet)))
	return r.unique(func() (string, error) {
		buf := make([]byte, n)
		for i := range buf {
			k, err := rand.Int(r.src, size)
			if err != nil {
				return "", err
			}
			buf[i] = passwordAlphabet[k.Int64()]
		}
		return string(buf), nil
	})
}

// MustGUID is GUID for template generators, which cannot return errors.
func (r *Random) MustGUID() string {
	g, err := r.GUID()
	if err != nil {
		panic(err)
	}
	return g
}

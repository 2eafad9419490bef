// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bootframe

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomImage(rng *rand.Rand) []byte {
	image := make([]byte, rng.Intn(4096))
	rng.Read(image)
	return image
}

func TestFuzz_ChecksumIsModuloSum(t *testing.T) {
	rng := newFuzzRng(t)
	for i := 0; i < getFuzzRounds(); i++ {
		image := randomImage(rng)
		var wide uint64
		for _, b := range image {
			wide += uint64(b)
		}
		if got := Checksum(image); got != uint32(wide%(1<<32)) {
			t.Fatalf("round %d: checksum 0x%08X != sum mod 2^32 0x%08X", i, got, uint32(wide))
		}
	}
}

func TestFuzz_HeaderDescribesImage(t *testing.T) {
	rng := newFuzzRng(t)
	for i := 0; i < getFuzzRounds(); i++ {
		image := randomImage(rng)
		h := Build(image)
		data := h.Bytes()
		if len(data) != HeaderSize {
			t.Fatalf("round %d: header is %d bytes", i, len(data))
		}
		parsed, err := ParseHeader(data)
		if err != nil {
			t.Fatalf("round %d: ParseHeader failed: %v", i, err)
		}
		if int(parsed.Size) != len(image) || parsed.Checksum != Checksum(image) {
			t.Fatalf("round %d: header %+v does not describe %d-byte image", i, parsed, len(image))
		}
		if !bytes.Equal(data[:4], []byte("BOOT")) {
			t.Fatalf("round %d: magic changed: % X", i, data[:4])
		}
	}
}

func TestFuzz_DecoderRandomNoiseNeverPanics(t *testing.T) {
	rng := newFuzzRng(t)
	decoder := NewDecoderWithLimit(1 << 16)
	for i := 0; i < getFuzzRounds(); i++ {
		noise := make([]byte, rng.Intn(64))
		rng.Read(noise)
		decoder.Decode(noise)
	}

	// A clean frame must still decode after arbitrary garbage
	decoder.Reset()
	image := randomImage(rng)
	frames, err := decoder.Decode(append(Build(image).Bytes(), image...))
	if err != nil || len(frames) != 1 {
		t.Fatalf("clean frame after reset: %d frames, err %v", len(frames), err)
	}
}

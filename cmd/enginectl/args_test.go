package main

import (
	"math/big"
	"testing"

	"synnergy-core/types"
)

func TestParseRuntimeArgsAllTypes(t *testing.T) {
	raw := []string{
		"amount=u512:12345",
		"count=u64:7",
		"payload=bytes:deadbeef",
		"label=string:hello",
		"flag=bool:true",
	}
	args, err := parseRuntimeArgs(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if args["amount"].Type != types.CLU512 || new(big.Int).SetBytes(args["amount"].Bytes).Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("amount mismatch: %+v", args["amount"])
	}
	if args["count"].Type != types.CLU64 || new(big.Int).SetBytes(args["count"].Bytes).Uint64() != 7 {
		t.Fatalf("count mismatch: %+v", args["count"])
	}
	if args["payload"].Type != types.CLByteArray || string(args["payload"].Bytes) != string([]byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("payload mismatch: %+v", args["payload"])
	}
	if args["label"].Type != types.CLString || string(args["label"].Bytes) != "hello" {
		t.Fatalf("label mismatch: %+v", args["label"])
	}
	if args["flag"].Type != types.CLBool || args["flag"].Bytes[0] != 1 {
		t.Fatalf("flag mismatch: %+v", args["flag"])
	}
}

func TestParseRuntimeArgsRejectsMalformedEntry(t *testing.T) {
	if _, err := parseRuntimeArgs([]string{"noequalssign"}); err == nil {
		t.Fatal("want error for an entry missing '='")
	}
	if _, err := parseRuntimeArgs([]string{"name=notypeseparator"}); err == nil {
		t.Fatal("want error for a spec missing ':'")
	}
	if _, err := parseRuntimeArgs([]string{"name=weird:1"}); err == nil {
		t.Fatal("want error for an unknown type tag")
	}
}

func TestParseHashRoundTrip(t *testing.T) {
	h, err := parseHash("0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	if err != nil {
		t.Fatalf("parse hash: %v", err)
	}
	if h[0] != 0x01 || h[31] != 0x20 {
		t.Fatalf("unexpected hash bytes: %x", h)
	}
}

func TestParseHashRejectsWrongLength(t *testing.T) {
	if _, err := parseHash("abcd"); err == nil {
		t.Fatal("want error for a hash shorter than 32 bytes")
	}
}

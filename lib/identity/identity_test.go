// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/routerpeer/lib/codec"
)

func mustGenerate(t *testing.T) *Keypair {
	t.Helper()
	keypair, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return keypair
}

func TestPeerFromBase64(t *testing.T) {
	t.Parallel()
	keypair := mustGenerate(t)
	encoded := keypair.Identity().Base64()

	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "canonical", input: encoded, valid: true},
		{name: "surrounding whitespace", input: "  " + encoded + "\n", valid: true},
		{name: "empty", input: ""},
		{name: "not base64", input: "hello world!"},
		{name: "too short", input: base64.StdEncoding.EncodeToString([]byte("short"))},
		{name: "too long", input: base64.StdEncoding.EncodeToString(make([]byte, 33))},
		{name: "all zero", input: base64.StdEncoding.EncodeToString(make([]byte, 32))},
		{name: "url alphabet", input: strings.NewReplacer("+", "-", "/", "_").Replace(encoded) + "?"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			relation, err := PeerFromBase64(test.input)
			if !test.valid {
				if err == nil {
					t.Fatalf("PeerFromBase64(%q) succeeded, want error", test.input)
				}
				if !errors.Is(err, ErrInvalidRelation) {
					t.Errorf("error %v does not wrap ErrInvalidRelation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PeerFromBase64: %v", err)
			}
			if relation.Identity != keypair.Identity() {
				t.Errorf("identity mismatch")
			}
			if relation.Role != RolePeer {
				t.Errorf("role = %v, want peer", relation.Role)
			}
		})
	}
}

func TestHostFromBase64(t *testing.T) {
	keypair := mustGenerate(t)
	relation, err := HostFromBase64(keypair.Identity().Base64())
	if err != nil {
		t.Fatalf("HostFromBase64: %v", err)
	}
	if relation.Role != RoleHost {
		t.Errorf("role = %v, want host", relation.Role)
	}
	if !strings.HasPrefix(relation.String(), "host:") {
		t.Errorf("String() = %q", relation.String())
	}
}

func TestFingerprintStable(t *testing.T) {
	keypair := mustGenerate(t)
	first := keypair.Identity().Fingerprint()
	if len(first) != 16 {
		t.Errorf("fingerprint %q is %d chars, want 16", first, len(first))
	}
	if again := keypair.Identity().Fingerprint(); again != first {
		t.Errorf("fingerprint changed: %q then %q", first, again)
	}
	other := mustGenerate(t)
	if other.Identity().Fingerprint() == first {
		t.Errorf("distinct identities share fingerprint %q", first)
	}
}

func TestSignVerify(t *testing.T) {
	keypair := mustGenerate(t)
	message := []byte("challenge nonce")
	signature := keypair.Sign(message)

	if !keypair.Identity().Verify(message, signature) {
		t.Error("signature did not verify")
	}
	if keypair.Identity().Verify([]byte("other"), signature) {
		t.Error("signature verified for a different message")
	}
}

func TestRelationCBORRoundtrip(t *testing.T) {
	keypair := mustGenerate(t)
	original := Relation{Identity: keypair.Identity(), Role: RoleHost}

	data, err := codec.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Relation
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("got %v, want %v", decoded, original)
	}
}

func TestRoleUnmarshalRejectsUnknown(t *testing.T) {
	var role Role
	if err := role.UnmarshalText([]byte("admin")); err == nil {
		t.Error("UnmarshalText(admin) succeeded")
	}
}

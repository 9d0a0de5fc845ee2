package object

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

const (
	sshsigMagic     = "SSHSIG"
	sshsigVersion   = 1
	sshsigNamespace = "git"
	sshsigHashAlg   = "sha512"
	sshsigBegin     = "-----BEGIN SSH SIGNATURE-----"
	sshsigEnd       = "-----END SSH SIGNATURE-----"
)

var ErrBadSignature = errors.New("bad commit signature")

// Signer produces the armored signature stored in a commit's gpgsig header.
type Signer func(payload []byte) (string, error)

// CommitSigningPayload returns the canonical bytes that are signed for a
// commit: the commit serialized without its signature.
func CommitSigningPayload(c *CommitObj) []byte {
	if c == nil {
		return nil
	}
	copyCommit := *c
	copyCommit.Signature = ""
	return MarshalCommit(&copyCommit)
}

// NewSSHSigner parses an OpenSSH private key and returns a Signer that
// emits SSHSIG armor, the format `git -c gpg.format=ssh` verifies.
func NewSSHSigner(privateKey []byte) (Signer, ssh.PublicKey, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parse signing key: %w", err)
	}
	pub := signer.PublicKey()

	sign := func(payload []byte) (string, error) {
		data := sshsigSignedData(payload)
		var (
			sig *ssh.Signature
			err error
		)
		if as, ok := signer.(ssh.AlgorithmSigner); ok && pub.Type() == ssh.KeyAlgoRSA {
			sig, err = as.SignWithAlgorithm(rand.Reader, data, ssh.KeyAlgoRSASHA512)
		} else {
			sig, err = signer.Sign(rand.Reader, data)
		}
		if err != nil {
			return "", fmt.Errorf("sign commit: %w", err)
		}

		var blob bytes.Buffer
		blob.WriteString(sshsigMagic)
		binary.Write(&blob, binary.BigEndian, uint32(sshsigVersion))
		writeSSHString(&blob, pub.Marshal())
		writeSSHString(&blob, []byte(sshsigNamespace))
		writeSSHString(&blob, nil)
		writeSSHString(&blob, []byte(sshsigHashAlg))
		writeSSHString(&blob, ssh.Marshal(sig))
		return armorSSHSig(blob.Bytes()), nil
	}
	return sign, pub, nil
}

// VerifySSHSignature checks an armored SSHSIG signature over payload and
// returns the signing public key.
func VerifySSHSignature(armored string, payload []byte) (ssh.PublicKey, error) {
	blob, err := dearmorSSHSig(armored)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(blob, []byte(sshsigMagic)) || len(blob) < len(sshsigMagic)+4 {
		return nil, fmt.Errorf("%w: missing SSHSIG magic", ErrBadSignature)
	}
	rest := blob[len(sshsigMagic):]
	if v := binary.BigEndian.Uint32(rest[:4]); v != sshsigVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadSignature, v)
	}
	rest = rest[4:]

	var fields [5][]byte
	for i := range fields {
		fields[i], rest, err = readSSHString(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
		}
	}
	pub, err := ssh.ParsePublicKey(fields[0])
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrBadSignature, err)
	}
	if string(fields[1]) != sshsigNamespace {
		return nil, fmt.Errorf("%w: namespace %q", ErrBadSignature, fields[1])
	}
	if string(fields[3]) != sshsigHashAlg {
		return nil, fmt.Errorf("%w: hash algorithm %q", ErrBadSignature, fields[3])
	}
	var sig ssh.Signature
	if err := ssh.Unmarshal(fields[4], &sig); err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrBadSignature, err)
	}
	if err := pub.Verify(sshsigSignedData(payload), &sig); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return pub, nil
}

func sshsigSignedData(payload []byte) []byte {
	sum := sha512.Sum512(payload)
	var buf bytes.Buffer
	buf.WriteString(sshsigMagic)
	writeSSHString(&buf, []byte(sshsigNamespace))
	writeSSHString(&buf, nil)
	writeSSHString(&buf, []byte(sshsigHashAlg))
	writeSSHString(&buf, sum[:])
	return buf.Bytes()
}

func writeSSHString(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

func readSSHString(b []byte) ([]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("truncated length")
	}
	n := binary.BigEndian.Uint32(b[:4])
	if uint64(len(b)-4) < uint64(n) {
		return nil, nil, fmt.Errorf("truncated field")
	}
	return b[4 : 4+n], b[4+n:], nil
}

func armorSSHSig(blob []byte) string {
	enc := base64.StdEncoding.EncodeToString(blob)
	var sb strings.Builder
	sb.WriteString(sshsigBegin)
	sb.WriteByte('\n')
	for len(enc) > 70 {
		sb.WriteString(enc[:70])
		sb.WriteByte('\n')
		enc = enc[70:]
	}
	sb.WriteString(enc)
	sb.WriteByte('\n')
	sb.WriteString(sshsigEnd)
	return sb.String()
}

func dearmorSSHSig(armored string) ([]byte, error) {
	armored = strings.TrimSpace(armored)
	if !strings.HasPrefix(armored, sshsigBegin) || !strings.HasSuffix(armored, sshsigEnd) {
		return nil, fmt.Errorf("%w: not SSH signature armor", ErrBadSignature)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(armored, sshsigBegin), sshsigEnd)
	body = strings.Join(strings.Fields(body), "")
	blob, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return blob, nil
}

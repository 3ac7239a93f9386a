// Package keyfile reads and writes passphrase-encrypted key files in the
// Web3 Secret Storage (version 3) layout. Field names and structure are
// byte-compatible with other conformant tools, so files move freely
// between implementations.
package keyfile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"

	"signet-wallet/go-keystore/internal/keycrypto"
	"signet-wallet/go-keystore/pkg/models"
)

const (
	formatVersion = 3
	cipherName    = "aes-128-ctr"
	kdfName       = "scrypt"
	saltSize      = 32
	ivSize        = 16
)

var (
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	ErrCorruptKeyFile    = errors.New("corrupt key file")
)

type encryptedKeyJSON struct {
	Version int        `json:"version"`
	ID      string     `json:"id"`
	Address string     `json:"address"`
	Crypto  cryptoJSON `json:"crypto"`
}

type cryptoJSON struct {
	Cipher       string           `json:"cipher"`
	Ciphertext   string           `json:"ciphertext"`
	CipherParams cipherParamsJSON `json:"cipherparams"`
	KDF          string           `json:"kdf"`
	KDFParams    kdfParamsJSON    `json:"kdfparams"`
	MAC          string           `json:"mac"`
}

type cipherParamsJSON struct {
	IV string `json:"iv"`
}

type kdfParamsJSON struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

// Meta is the plaintext portion of a key file.
type Meta struct {
	ID      string
	Address models.Address
	Params  Params
}

// Encrypt serializes priv into an encrypted key file under passphrase.
// Every call draws a fresh salt and IV.
func Encrypt(priv *btcec.PrivateKey, passphrase string, params Params) ([]byte, error) {
	if !params.valid() {
		return nil, fmt.Errorf("invalid scrypt params n=%d p=%d", params.N, params.P)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	dk, err := scrypt.Key([]byte(passphrase), salt, params.N, scryptR, params.P, scryptDKLen)
	if err != nil {
		return nil, err
	}
	defer keycrypto.ZeroBytes(dk)

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	plaintext := priv.Serialize()
	defer keycrypto.ZeroBytes(plaintext)

	block, err := aes.NewCipher(dk[:16])
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, plaintext)

	mac := keycrypto.Keccak256(dk[16:32], ciphertext)
	addr := keycrypto.PubkeyToAddress(priv.PubKey())

	return json.Marshal(encryptedKeyJSON{
		Version: formatVersion,
		ID:      uuid.NewString(),
		Address: addr.String(),
		Crypto: cryptoJSON{
			Cipher:       cipherName,
			Ciphertext:   hex.EncodeToString(ciphertext),
			CipherParams: cipherParamsJSON{IV: hex.EncodeToString(iv)},
			KDF:          kdfName,
			KDFParams: kdfParamsJSON{
				DKLen: scryptDKLen,
				N:     params.N,
				R:     scryptR,
				P:     params.P,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(mac),
		},
	})
}

// Decrypt recovers the private key from an encrypted key file. The MAC is
// verified before any decryption happens, which is what separates a wrong
// passphrase from a damaged file.
func Decrypt(raw []byte, passphrase string) (*btcec.PrivateKey, error) {
	var enc encryptedKeyJSON
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptKeyFile, err)
	}
	ciphertext, iv, salt, storedMAC, err := decodeCryptoFields(&enc)
	if err != nil {
		return nil, err
	}

	kp := enc.Crypto.KDFParams
	dk, err := scrypt.Key([]byte(passphrase), salt, kp.N, kp.R, kp.P, kp.DKLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptKeyFile, err)
	}
	defer keycrypto.ZeroBytes(dk)

	mac := keycrypto.Keccak256(dk[16:32], ciphertext)
	if subtle.ConstantTimeCompare(mac, storedMAC) != 1 {
		return nil, ErrInvalidPassphrase
	}

	block, err := aes.NewCipher(dk[:16])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptKeyFile, err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)
	defer keycrypto.ZeroBytes(plaintext)

	priv, err := keycrypto.ParsePrivateKey(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptKeyFile, err)
	}

	addr, err := models.ParseAddress(enc.Address)
	if err != nil {
		keycrypto.ZeroKey(priv)
		return nil, fmt.Errorf("%w: bad address field", ErrCorruptKeyFile)
	}
	if derived := keycrypto.PubkeyToAddress(priv.PubKey()); derived != addr {
		keycrypto.ZeroKey(priv)
		return nil, fmt.Errorf("%w: address does not match key", ErrCorruptKeyFile)
	}
	return priv, nil
}

// Inspect returns the plaintext metadata of a key file without decrypting.
func Inspect(raw []byte) (Meta, error) {
	var enc encryptedKeyJSON
	if err := json.Unmarshal(raw, &enc); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrCorruptKeyFile, err)
	}
	if _, _, _, _, err := decodeCryptoFields(&enc); err != nil {
		return Meta{}, err
	}
	addr, err := models.ParseAddress(enc.Address)
	if err != nil {
		return Meta{}, fmt.Errorf("%w: bad address field", ErrCorruptKeyFile)
	}
	return Meta{
		ID:      enc.ID,
		Address: addr,
		Params:  Params{N: enc.Crypto.KDFParams.N, P: enc.Crypto.KDFParams.P},
	}, nil
}

// StoredAddress reads just the address field, for directory scans.
func StoredAddress(raw []byte) (models.Address, error) {
	meta, err := Inspect(raw)
	if err != nil {
		return models.Address{}, err
	}
	return meta.Address, nil
}

func decodeCryptoFields(enc *encryptedKeyJSON) (ciphertext, iv, salt, mac []byte, err error) {
	if enc.Version != formatVersion {
		return nil, nil, nil, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptKeyFile, enc.Version)
	}
	if enc.Crypto.Cipher != cipherName {
		return nil, nil, nil, nil, fmt.Errorf("%w: unsupported cipher %q", ErrCorruptKeyFile, enc.Crypto.Cipher)
	}
	if enc.Crypto.KDF != kdfName {
		return nil, nil, nil, nil, fmt.Errorf("%w: unsupported kdf %q", ErrCorruptKeyFile, enc.Crypto.KDF)
	}
	kp := enc.Crypto.KDFParams
	if kp.DKLen < scryptDKLen || !(Params{N: kp.N, P: kp.P}).valid() || kp.R <= 0 {
		return nil, nil, nil, nil, fmt.Errorf("%w: bad kdf params", ErrCorruptKeyFile)
	}
	if ciphertext, err = hexField(enc.Crypto.Ciphertext, "ciphertext"); err != nil {
		return nil, nil, nil, nil, err
	}
	if iv, err = hexField(enc.Crypto.CipherParams.IV, "iv"); err != nil {
		return nil, nil, nil, nil, err
	}
	if salt, err = hexField(kp.Salt, "salt"); err != nil {
		return nil, nil, nil, nil, err
	}
	if mac, err = hexField(enc.Crypto.MAC, "mac"); err != nil {
		return nil, nil, nil, nil, err
	}
	return ciphertext, iv, salt, mac, nil
}

func hexField(s, name string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptKeyFile, name)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s encoding", ErrCorruptKeyFile, name)
	}
	return raw, nil
}

package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Source records where a key pair came from.
type Source string

const (
	SourceFile      Source = "file"
	SourceGenerated Source = "generated"
)

// Pair is a certificate/key pair selected once at startup.
type Pair struct {
	CertPEM []byte
	KeyPEM  []byte
	Source  Source
	Leaf    *x509.Certificate

	certificate tls.Certificate
}

// Options configures self-signed generation.
type Options struct {
	CommonName   string
	Organization string
	DNSNames     []string
	IPAddresses  []net.IP
	Validity     time.Duration
	KeyBits      int
	Now          func() time.Time
}

// LocalhostOptions returns the options used when no files are configured:
// CN=localhost, SANs localhost and 127.0.0.1, valid for 365 days.
func LocalhostOptions() Options {
	return Options{
		CommonName:   "localhost",
		Organization: "Topaz Demo Local Bridge",
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		Validity:     365 * 24 * time.Hour,
		KeyBits:      2048,
		Now:          time.Now,
	}
}

// Resolve loads the pair from certPath/keyPath when both files exist and
// otherwise generates a localhost pair in memory. Nothing is written to disk.
func Resolve(certPath, keyPath string) (*Pair, error) {
	if fileExists(certPath) && fileExists(keyPath) {
		return LoadFiles(certPath, keyPath)
	}
	return GenerateSelfSigned(LocalhostOptions())
}

// LoadFiles reads a PEM certificate and key from disk.
func LoadFiles(certPath, keyPath string) (*Pair, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	return fromPEM(certPEM, keyPEM, SourceFile)
}

// GenerateSelfSigned creates a self-signed server certificate.
func GenerateSelfSigned(opts Options) (*Pair, error) {
	if opts.KeyBits == 0 {
		opts.KeyBits = 2048
	}
	if opts.Validity <= 0 {
		return nil, errors.New("certificate validity must be positive")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, opts.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	notBefore := now().UTC().Truncate(time.Second)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   opts.CommonName,
			Organization: []string{opts.Organization},
		},
		DNSNames:              opts.DNSNames,
		IPAddresses:           opts.IPAddresses,
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(opts.Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})

	return fromPEM(certPEM, keyPEM, SourceGenerated)
}

func fromPEM(certPEM, keyPEM []byte, source Source) (*Pair, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	cert.Leaf = leaf

	return &Pair{
		CertPEM:     certPEM,
		KeyPEM:      keyPEM,
		Source:      source,
		Leaf:        leaf,
		certificate: cert,
	}, nil
}

// TLSConfig returns a server configuration pinned to this pair.
func (p *Pair) TLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{p.certificate},
		MinVersion:   tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

// WriteFiles persists the pair. The key file is written with mode 0600.
func (p *Pair) WriteFiles(certPath, keyPath string) error {
	for _, dir := range []string{filepath.Dir(certPath), filepath.Dir(keyPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(certPath, p.CertPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, p.KeyPEM, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

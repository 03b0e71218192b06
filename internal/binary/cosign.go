package binary

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sigstore/sigstore-go/pkg/bundle"
	"github.com/sigstore/sigstore-go/pkg/root"
	"github.com/sigstore/sigstore-go/pkg/verify"
)

// cosignVerifier checks keyless sigstore bundles produced by cosign in CI.
type cosignVerifier struct {
	identity string // certificate SAN regexp
	issuer   string // OIDC issuer
	timeout  time.Duration

	// fetchTrustedRoot is replaced in tests to avoid the TUF round trip.
	fetchTrustedRoot func() (root.TrustedMaterial, error)
}

func newCosignVerifier(identity, issuer string, timeout time.Duration) *cosignVerifier {
	return &cosignVerifier{
		identity: identity,
		issuer:   issuer,
		timeout:  timeout,
		fetchTrustedRoot: func() (root.TrustedMaterial, error) {
			return root.FetchTrustedRoot()
		},
	}
}

func (c *cosignVerifier) verify(ctx context.Context, archivePath, bundlePath string) (*VerificationResult, error) {
	fail := func(err error) (*VerificationResult, error) {
		return &VerificationResult{Method: VerificationCosign, Success: false, Error: err}, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	b, err := bundle.LoadJSONFromPath(bundlePath)
	if err != nil {
		return fail(fmt.Errorf("load bundle: %w", err))
	}

	trusted, err := c.trustedRoot(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetch trusted root: %w", err))
	}

	sev, err := verify.NewVerifier(trusted,
		verify.WithSignedCertificateTimestamps(1),
		verify.WithTransparencyLog(1),
		verify.WithObserverTimestamps(1),
	)
	if err != nil {
		return fail(fmt.Errorf("create verifier: %w", err))
	}

	id, err := verify.NewShortCertificateIdentity(c.issuer, "", "", c.identity)
	if err != nil {
		return fail(fmt.Errorf("certificate identity: %w", err))
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fail(fmt.Errorf("open archive: %w", err))
	}
	defer archiveFile.Close()

	if _, err := sev.Verify(b, verify.NewPolicy(
		verify.WithArtifact(archiveFile),
		verify.WithCertificateIdentity(id),
	)); err != nil {
		return fail(fmt.Errorf("verify bundle: %w", err))
	}

	return &VerificationResult{Method: VerificationCosign, Success: true}, nil
}

// trustedRoot runs the TUF fetch under ctx and the configured timeout. The
// sigstore client takes no context, so a fetch that outlives the deadline is
// abandoned and its result discarded.
func (c *cosignVerifier) trustedRoot(ctx context.Context) (root.TrustedMaterial, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	type fetched struct {
		material root.TrustedMaterial
		err      error
	}
	done := make(chan fetched, 1)
	go func() {
		material, err := c.fetchTrustedRoot()
		done <- fetched{material, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.material, ctx.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

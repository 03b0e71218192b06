// Package binary downloads, verifies and unpacks conductor release archives.
//
// # Pipeline
//
//	resolver := binary.NewReleaseResolver(downloader, cfg, logger)
//	version, err := resolver.Latest(ctx)
//
//	asset, err := binary.NewAsset(cfg, platformInfo, version)
//
//	mgr := binary.NewManager(binary.ManagerConfig{
//	    Downloader: downloader,
//	    Verifier:   binary.NewVerifier(cfg),
//	})
//	res, err := mgr.Install(ctx, asset, destDir, progress)
//
// # Redirects
//
// GitHub answers both the releases API and asset downloads with redirects
// to object storage. The Downloader follows them itself, one hop at a time,
// up to a fixed bound, so the final URL is known when reporting errors.
//
// # Integrity
//
// Verification is opt-in. With VerifyNone the archive is extracted as
// downloaded, matching the published npm hook. SHA256 (release checksums
// file), GPG (detached signature, caller-supplied keyring) and cosign
// (sigstore bundle) can be enabled through configuration.
//
// # Extraction
//
// Archives are read in-process (tar.gz, tar.zst, zip). Entries that would
// land outside the destination directory are rejected.
package binary

package logging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
)

// #region log-decision
// LogDecision writes one verdict line with its provenance attributes.
func LogDecision(ctx context.Context, log *slog.Logger, entry ProvenanceEntry) {
	attrs := []slog.Attr{
		slog.String("system", entry.System),
		slog.String("trigger", entry.TriggerType),
		slog.String("verdict", entry.Verdict),
		slog.Float64("spfm", entry.SPFM),
		slog.Float64("lfm", entry.LFM),
		slog.Float64("residual_fit", entry.ResidualFIT),
		slog.Float64("latent_fit", entry.LatentFIT),
	}
	if entry.LayoutHash != "" {
		attrs = append(attrs, slog.String("layout_hash", entry.LayoutHash))
	}
	if entry.VersionID != "" {
		attrs = append(attrs, slog.String("version_id", entry.VersionID))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "analysis complete", attrs...)
}

// #endregion log-decision

// #region helpers
// HashLayout returns the hex sha256 of v's JSON encoding. encoding/json
// sorts map keys, so equal layouts hash equally.
func HashLayout(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash layout: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// #endregion helpers

package service

import "context"

// SweepResult counts rows removed by Sweep.
type SweepResult struct {
	Otps   int64
	Resets int64
}

// Sweep deletes expired login codes and reset artifacts. Expiry is enforced
// lazily on use, so this only keeps the tables small.
func (s *AuthService) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now().UTC()
	otps, err := s.otps.DeleteOlderThan(ctx, now.Add(-s.opts.OTPTTL))
	if err != nil {
		return SweepResult{}, internal(err, "sweep otps")
	}
	resets, err := s.resets.DeleteExpired(ctx, now)
	if err != nil {
		return SweepResult{Otps: otps}, internal(err, "sweep resets")
	}
	s.logger.Info("sweep finished", "otps", otps, "resets", resets)
	return SweepResult{Otps: otps, Resets: resets}, nil
}

package scheduler

import "context"

// Snapshot returns the persisted pending set with per-job armed flags.
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	jobs := s.store.Load(ctx)

	s.tmu.Lock()
	armed := len(s.timers)
	infos := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		_, hasTimer := s.timers[j.ID]
		infos = append(infos, JobInfo{
			ID:        j.ID,
			GroupName: j.GroupName,
			FireAt:    j.FireAt(),
			Armed:     hasTimer,
		})
	}
	s.tmu.Unlock()

	return Snapshot{Pending: infos, Armed: armed}
}

package cleanup

import "storeops/internal/cascade"

// Accessors for the external cleanup_test package, which cannot import
// this package internally without an import cycle through config.

func (s *Service) Data() cascade.DataStore { return s.data }

func (s *Service) Engine() *cascade.Engine { return s.engine }

func (s *Service) SetRetry(r RetryQueue) { s.retry = r }

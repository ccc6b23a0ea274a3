package promise

// resolveProcessingLeadTime resolves the warehouse-handling lead time for an
// item through the override hierarchy, highest priority first: item-specific,
// then warehouse-specific, then the per-call rule value, then the system
// default.
func (s *Service) resolveProcessingLeadTime(itemCode, warehouse string, rules Rules) int {
	if days, ok := s.itemLeadTimes[normalizeKey(itemCode)]; ok {
		return days
	}
	if days, ok := s.warehouseLeadTimes[normalizeKey(warehouse)]; ok {
		return days
	}
	if rules.ProcessingLeadTimeDays != nil {
		return *rules.ProcessingLeadTimeDays
	}
	return s.opts.DefaultProcessingLeadTimeDays
}

package snapshot

// MergeFMStep applies src onto dst field-wise: every scalar field
// overwrites iff src's value is set, except Status, which always
// overwrites — including with nil — so a terminal status is never
// masked by a stale non-nil value left over from an earlier merge.
func MergeFMStep(dst, src *FMStepSnapshot) {
	if dst == nil || src == nil {
		return
	}
	dst.Status = src.Status
	if src.StartTime != nil {
		dst.StartTime = src.StartTime
	}
	if src.EndTime != nil {
		dst.EndTime = src.EndTime
	}
	if src.Index != nil {
		dst.Index = src.Index
	}
	if src.CPUSeconds != nil {
		dst.CPUSeconds = src.CPUSeconds
	}
	if src.CurrentMemoryUsed != nil {
		dst.CurrentMemoryUsed = src.CurrentMemoryUsed
	}
	if src.MaxMemoryUsed != nil {
		dst.MaxMemoryUsed = src.MaxMemoryUsed
	}
	if src.Name != nil {
		dst.Name = src.Name
	}
	if src.Error != nil {
		dst.Error = src.Error
	}
	if src.Stdout != nil {
		dst.Stdout = src.Stdout
	}
	if src.Stderr != nil {
		dst.Stderr = src.Stderr
	}
}

// MergeRealization applies src onto dst field-wise. All scalar fields
// overwrite iff src's value is set; FmSteps is merged key-wise
// (existing keys updated via MergeFMStep, new keys inserted).
func MergeRealization(dst, src *RealizationSnapshot) {
	if dst == nil || src == nil {
		return
	}
	if src.Status != nil {
		dst.Status = src.Status
	}
	if src.Active != nil {
		dst.Active = src.Active
	}
	if src.StartTime != nil {
		dst.StartTime = src.StartTime
	}
	if src.EndTime != nil {
		dst.EndTime = src.EndTime
	}
	if src.ExecHosts != nil {
		dst.ExecHosts = src.ExecHosts
	}
	if src.Message != nil {
		dst.Message = src.Message
	}
	if len(src.FmSteps) == 0 {
		return
	}
	if dst.FmSteps == nil {
		dst.FmSteps = make(map[string]*FMStepSnapshot, len(src.FmSteps))
	}
	for step, srcStep := range src.FmSteps {
		if existing, ok := dst.FmSteps[step]; ok {
			MergeFMStep(existing, srcStep)
		} else {
			dst.FmSteps[step] = srcStep.Clone()
		}
	}
}

// Merge applies src onto dst: the ensemble state overwrites iff src's
// is set, realizations merge key-wise via MergeRealization, and the
// flat fm_steps index merges key-wise via MergeFMStep. Merge is
// idempotent — applying the same src twice leaves dst unchanged on
// the second application — because every field rule above is itself
// idempotent (overwrite-with-same-value, or unconditional overwrite
// with the same value).
func Merge(dst, src *EnsembleSnapshot) {
	if dst == nil || src == nil {
		return
	}
	if src.State != nil {
		dst.State = src.State
	}
	for id, srcReal := range src.Realizations {
		if existing, ok := dst.Realizations[id]; ok {
			MergeRealization(existing, srcReal)
		} else {
			dst.Realizations[id] = srcReal.Clone()
		}
	}
	for key, srcStep := range src.FmSteps {
		if existing, ok := dst.FmSteps[key]; ok {
			MergeFMStep(existing, srcStep)
		} else {
			dst.FmSteps[key] = srcStep.Clone()
		}
	}
}

package models

// DeepCopy returns a deep copy of the Station.
func (st Station) DeepCopy() Station {
	st.Options = CloneMap(st.Options)
	return st
}

// DeepCopy returns a deep copy of the Play.
func (p *Play) DeepCopy() *Play {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Metadata = CloneMap(p.Metadata)
	return &cp
}

// DeepCopy returns a deep copy of the Session.
func (s Session) DeepCopy() Session {
	cp := s
	if s.Stations != nil {
		cp.Stations = make([]Station, len(s.Stations))
		for i, st := range s.Stations {
			cp.Stations[i] = st.DeepCopy()
		}
	}
	if s.ActiveStation != nil {
		st := s.ActiveStation.DeepCopy()
		cp.ActiveStation = &st
	}
	cp.CurrentPlay = s.CurrentPlay.DeepCopy()
	return cp
}

// DeepCopy returns a deep copy of the StreamerSession.
func (s StreamerSession) DeepCopy() StreamerSession {
	cp := s
	cp.CurrentPlay = s.CurrentPlay.DeepCopy()
	return cp
}

// CloneMap copies a decoded JSON object, recursing into nested maps and slices.
func CloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

package subsystem

// Handle is the user-facing owner of a Record. Destroying the record
// empties the handle.
type Handle struct {
	rec *Record
}

func NewHandle(rec *Record) *Handle {
	h := &Handle{rec: rec}
	if rec != nil {
		rec.SetHandle(h)
	}
	return h
}

func (h *Handle) Record() *Record { return h.rec }

func (h *Handle) IsEmpty() bool { return h.rec == nil }

// Release destroys the owned record.
func (h *Handle) Release() {
	if h.rec != nil {
		h.rec.Destroy()
	}
	h.rec = nil
}

package riverworker

import "encoding/json"

// JobKind is the kind the riverqueue publisher driver inserts by default.
const JobKind = "branchhooks.event"

// BranchArgs holds a notification body exactly as the receiver accepted it.
// It is validated when the job is worked, not when it is loaded.
type BranchArgs struct {
	Raw json.RawMessage
}

func (BranchArgs) Kind() string { return JobKind }

func (a BranchArgs) MarshalJSON() ([]byte, error) {
	if len(a.Raw) == 0 {
		return []byte("null"), nil
	}
	return a.Raw, nil
}

func (a *BranchArgs) UnmarshalJSON(data []byte) error {
	a.Raw = append(a.Raw[:0], data...)
	return nil
}

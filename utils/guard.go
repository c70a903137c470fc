package utils

// Guard runs a cleanup function when the function that allocated a resource returns early with an
// error. Usage:
//
//	guard := NewGuard(func() { dev.Close() })
//	defer guard.OnFail()
//	if err != nil { return err }
//	guard.Success()
//	return nil
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a Guard that calls `onFailCleanup` from OnFail unless Success was called.
func NewGuard(onFailCleanup func()) *Guard {
	ret := &Guard{}
	ret.OnFail = func() {
		if !ret.success {
			onFailCleanup()
		}
	}
	return ret
}

// Success declares the function succeeded and the cleanup must not run.
func (guard *Guard) Success() {
	guard.success = true
}

package owned

// noCopy records the address of the struct embedding it on first use. A
// by-value copy keeps the original address, which check detects.
// Lock and Unlock make go vet's copylocks pass flag copies statically.
type noCopy struct {
	addr *noCopy
}

// init claims n and reports whether this was the first use.
func (n *noCopy) init() bool {
	if n.addr == nil {
		n.addr = n
		return true
	}
	return false
}

func (n *noCopy) check() bool {
	return n.addr == n
}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

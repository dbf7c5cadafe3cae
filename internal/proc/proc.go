package proc

// Proc is an ordered sequence of instructions. Because every element
// is a *Instr, a Proc's backing slice can be reallocated by append
// without invalidating references other procedures or the builder
// hold to individual instructions — this plays the role the spec's
// build-time linked list (supporting insert) and run-time flat vector
// both play, collapsed into one representation; the DAG of procedures
// referencing shared instructions falls out naturally since multiple
// Procs can hold the same *Instr pointer (notably variant options
// sharing a tail is representable by two Procs ending in the same
// trailing *Instr values).
type Proc struct {
	Instrs []*Instr
}

func (p *Proc) push(i *Instr) *Instr {
	p.Instrs = append(p.Instrs, i)
	return i
}

// insertAfter splices instr into p immediately after target. It scans
// linearly for target's position; this runs only at trace-type build
// time (never in the decode hot path), where schemas are small enough
// that the scan cost is immaterial.
func (p *Proc) insertAfter(target, instr *Instr) bool {
	for i, cur := range p.Instrs {
		if cur == target {
			p.Instrs = append(p.Instrs, nil)
			copy(p.Instrs[i+2:], p.Instrs[i+1:])
			p.Instrs[i+1] = instr
			return true
		}
	}
	return false
}

package remote

import (
	"github.com/lililuanluan/weazer/checking"
	"github.com/lililuanluan/weazer/event"
	"github.com/lililuanluan/weazer/graph"
	"github.com/lililuanluan/weazer/label"
	"github.com/lililuanluan/weazer/verifier"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformed = errors.New("remote: malformed message")

type encoder struct {
	b []byte
}

func (e *encoder) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) int(num protowire.Number, v int64) {
	e.uint(num, protowire.EncodeZigZag(v))
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if v {
		e.uint(num, 1)
	}
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

func (e *encoder) string(num protowire.Number, s string) {
	if s != "" {
		e.bytes(num, []byte(s))
	}
}

func (e *encoder) event(num protowire.Number, ev event.Event) {
	var sub encoder
	sub.int(1, int64(ev.Thread))
	sub.int(2, int64(ev.Index))
	e.bytes(num, sub.b)
}

// A decoded field. Only varint and length-delimited fields are used.
type field struct {
	num protowire.Number
	v   uint64
	b   []byte
}

func (f field) int() int64 { return protowire.DecodeZigZag(f.v) }

// Call fn for every field of b. Fields of other wire types are skipped.
func fields(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(ErrMalformed, protowire.ParseError(n).Error())
		}
		b = b[n:]
		f := field{num: num}
		known := true
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			known = false
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrap(ErrMalformed, protowire.ParseError(n).Error())
		}
		b = b[n:]
		if known {
			if err := fn(f); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeEvent(b []byte) (event.Event, error) {
	var ev event.Event
	err := fields(b, func(f field) error {
		switch f.num {
		case 1:
			ev.Thread = int(f.int())
		case 2:
			ev.Index = int(f.int())
		}
		return nil
	})
	return ev, err
}

const (
	flagHasRf = 1 << iota
	flagRevisitable
	flagIPR
	flagAddedMax
	flagWWRacy
	flagExpandable
	flagExpanded
	flagHasAnnot
)

// The flat form of a label. Fields a kind does not use stay zero.
type wireLabel struct {
	kind     label.Kind
	pos      event.Event
	stamp    event.Stamp
	ord      label.Ordering
	addr     label.SAddr
	size     label.ASize
	val      label.SVal
	rf       event.Event
	flags    uint64
	annotOp  label.CmpOp
	annotVal label.SVal
	rmwOp    label.RMWOp
	operand  label.SVal
	expected label.SVal
	swap     label.SVal
	parent   event.Event
	funcID   int
	// The child of a create, join or join block, or the symmetric thread
	// of a thread start
	other     int
	blockType label.BlockType
	hpAddr    label.SAddr
}

func toWire(lab label.Label) *wireLabel {
	w := &wireLabel{kind: lab.Kind(), pos: lab.Pos(), stamp: lab.Stamp(), ord: lab.Ordering()}
	switch l := lab.(type) {
	case *label.ThreadStart:
		w.parent, w.funcID, w.val, w.other = l.Parent, l.FuncID, l.Arg, l.SymmetricTid
	case *label.ThreadCreate:
		w.other, w.funcID, w.val = l.Child, l.FuncID, l.Arg
	case *label.ThreadJoin:
		w.other = l.Child
	case *label.ThreadFinish:
		w.val = l.Ret
	case *label.Block:
		w.blockType, w.addr, w.other = l.Type, l.Addr, l.Child
	case *label.Malloc:
		w.addr, w.size = l.Addr, l.Size
	case *label.Free:
		w.addr = l.Addr
	case *label.HpProtect:
		w.hpAddr, w.addr = l.HpAddr, l.Addr
	case *label.HelpingCas:
		w.addr, w.size, w.expected, w.swap = l.Addr, l.Size, l.Expected, l.Swap
	case *label.Optional:
		if l.Expandable {
			w.flags |= flagExpandable
		}
		if l.Expanded {
			w.flags |= flagExpanded
		}
	case *label.Read:
		w.addr, w.size = l.Addr(), l.Size()
		if rf, ok := l.Rf(); ok {
			w.rf = rf
			w.flags |= flagHasRf
		}
		if l.IsRevisitable() {
			w.flags |= flagRevisitable
		}
		if l.IsIPR() {
			w.flags |= flagIPR
		}
		if l.WasAddedMax() {
			w.flags |= flagAddedMax
		}
		if a := l.Annotation(); a != nil {
			w.flags |= flagHasAnnot
			w.annotOp, w.annotVal = a.Op, a.Value
		}
		if rmw, ok := l.RMW(); ok {
			w.rmwOp, w.operand, w.expected, w.swap = rmw.Op, rmw.Operand, rmw.Expected, rmw.Swap
		}
	case *label.Write:
		w.addr, w.size, w.val = l.Addr(), l.Size(), l.Val()
		if l.WasAddedMax() {
			w.flags |= flagAddedMax
		}
		if l.IsWWRacy() {
			w.flags |= flagWWRacy
		}
	}
	return w
}

func (w *wireLabel) encode() []byte {
	var e encoder
	e.uint(1, uint64(w.kind))
	e.int(2, int64(w.pos.Thread))
	e.int(3, int64(w.pos.Index))
	e.uint(4, uint64(w.stamp))
	e.uint(5, uint64(w.ord))
	e.uint(6, uint64(w.addr))
	e.uint(7, uint64(w.size))
	e.int(8, int64(w.val))
	e.int(9, int64(w.rf.Thread))
	e.int(10, int64(w.rf.Index))
	e.uint(11, w.flags)
	e.uint(12, uint64(w.annotOp))
	e.int(13, int64(w.annotVal))
	e.uint(14, uint64(w.rmwOp))
	e.int(15, int64(w.operand))
	e.int(16, int64(w.expected))
	e.int(17, int64(w.swap))
	e.int(18, int64(w.parent.Thread))
	e.int(19, int64(w.parent.Index))
	e.int(20, int64(w.funcID))
	e.int(21, int64(w.other))
	e.uint(22, uint64(w.blockType))
	e.uint(23, uint64(w.hpAddr))
	return e.b
}

func decodeWireLabel(b []byte) (*wireLabel, error) {
	w := &wireLabel{}
	err := fields(b, func(f field) error {
		switch f.num {
		case 1:
			w.kind = label.Kind(f.v)
		case 2:
			w.pos.Thread = int(f.int())
		case 3:
			w.pos.Index = int(f.int())
		case 4:
			w.stamp = event.Stamp(f.v)
		case 5:
			w.ord = label.Ordering(f.v)
		case 6:
			w.addr = label.SAddr(f.v)
		case 7:
			w.size = label.ASize(f.v)
		case 8:
			w.val = label.SVal(f.int())
		case 9:
			w.rf.Thread = int(f.int())
		case 10:
			w.rf.Index = int(f.int())
		case 11:
			w.flags = f.v
		case 12:
			w.annotOp = label.CmpOp(f.v)
		case 13:
			w.annotVal = label.SVal(f.int())
		case 14:
			w.rmwOp = label.RMWOp(f.v)
		case 15:
			w.operand = label.SVal(f.int())
		case 16:
			w.expected = label.SVal(f.int())
		case 17:
			w.swap = label.SVal(f.int())
		case 18:
			w.parent.Thread = int(f.int())
		case 19:
			w.parent.Index = int(f.int())
		case 20:
			w.funcID = int(f.int())
		case 21:
			w.other = int(f.int())
		case 22:
			w.blockType = label.BlockType(f.v)
		case 23:
			w.hpAddr = label.SAddr(f.v)
		}
		return nil
	})
	return w, err
}

func (w *wireLabel) has(flag uint64) bool {
	return w.flags&flag != 0
}

// Returns the label w describes, without its reads-from edge
func (w *wireLabel) label() (label.Label, error) {
	k, pos := w.kind, w.pos
	switch {
	case k == label.KindThreadStart:
		return label.NewThreadStart(pos, w.parent, w.funcID, w.val, w.other), nil
	case k == label.KindThreadCreate:
		return label.NewThreadCreate(pos, w.other, w.funcID, w.val), nil
	case k == label.KindThreadJoin:
		return label.NewThreadJoin(pos, w.other), nil
	case k == label.KindThreadFinish:
		return label.NewThreadFinish(pos, w.val), nil
	case k == label.KindThreadKill:
		return label.NewThreadKill(pos), nil
	case k == label.KindBlock:
		b := label.NewBlock(pos, w.blockType)
		b.Addr, b.Child = w.addr, w.other
		return b, nil
	case k == label.KindFence:
		return label.NewFence(pos, w.ord), nil
	case k == label.KindMalloc:
		return label.NewMalloc(pos, w.addr, w.size), nil
	case k == label.KindFree:
		return label.NewFree(pos, w.addr), nil
	case k == label.KindHpRetire:
		return label.NewHpRetire(pos, w.addr), nil
	case k == label.KindHpProtect:
		return label.NewHpProtect(pos, w.hpAddr, w.addr), nil
	case k == label.KindHelpingCas:
		return label.NewHelpingCas(pos, w.ord, w.addr, w.size, w.expected, w.swap), nil
	case k == label.KindOptional:
		o := label.NewOptional(pos)
		o.Expandable, o.Expanded = w.has(flagExpandable), w.has(flagExpanded)
		return o, nil
	case k == label.KindEmpty:
		return label.NewEmpty(pos), nil
	case k.IsRead():
		var annot *label.Annotation
		if w.has(flagHasAnnot) {
			annot = &label.Annotation{Op: w.annotOp, Value: w.annotVal}
		}
		var r *label.Read
		switch {
		case k == label.KindFaiRead:
			r = label.NewFaiRead(pos, w.ord, w.addr, w.size, w.rmwOp, w.operand)
		case k.IsCasRead():
			r = label.NewCasRead(k, pos, w.ord, w.addr, w.size, w.expected, w.swap, annot)
		default:
			r = label.NewReadOfKind(k, pos, w.ord, w.addr, w.size)
		}
		r.SetAnnotation(annot)
		r.SetRevisitable(w.has(flagRevisitable))
		r.SetIPR(w.has(flagIPR))
		r.SetAddedMax(w.has(flagAddedMax))
		return r, nil
	case k.IsWrite():
		wr := label.NewWriteOfKind(k, pos, w.ord, w.addr, w.size, w.val)
		wr.SetAddedMax(w.has(flagAddedMax))
		wr.SetWWRacy(w.has(flagWWRacy))
		return wr, nil
	}
	return nil, errors.Wrapf(ErrMalformed, "label of kind %v at %v", k, pos)
}

// Encode a state: its labels, the coherence order of every address and
// its choices
func encodeState(st *verifier.State) []byte {
	var e encoder
	g := st.Graph
	for _, lab := range g.LabelsByStamp() {
		if lab.Kind() != label.KindInit {
			e.bytes(1, toWire(lab).encode())
		}
	}
	for _, addr := range g.Addresses() {
		var sub encoder
		sub.uint(1, uint64(addr))
		for _, w := range g.Co(addr) {
			sub.event(2, w)
		}
		e.bytes(2, sub.b)
	}
	stamps := maps.Keys(st.Choices)
	slices.Sort(stamps)
	for _, s := range stamps {
		var sub encoder
		sub.uint(1, uint64(s))
		for _, alt := range st.Choices[s] {
			sub.event(2, alt)
		}
		e.bytes(3, sub.b)
	}
	return e.b
}

// Rebuild a state. Labels are added in stamp order, so that stamps are
// renumbered densely; the keys of the choices follow.
func decodeState(b []byte) (*verifier.State, error) {
	var labels []*wireLabel
	type eventList struct {
		key    uint64
		events []event.Event
	}
	var cos, choices []eventList
	decodeList := func(b []byte) (eventList, error) {
		var l eventList
		err := fields(b, func(f field) error {
			switch f.num {
			case 1:
				l.key = f.v
			case 2:
				ev, err := decodeEvent(f.b)
				if err != nil {
					return err
				}
				l.events = append(l.events, ev)
			}
			return nil
		})
		return l, err
	}
	err := fields(b, func(f field) error {
		switch f.num {
		case 1:
			w, err := decodeWireLabel(f.b)
			if err != nil {
				return err
			}
			labels = append(labels, w)
		case 2, 3:
			l, err := decodeList(f.b)
			if err != nil {
				return err
			}
			if f.num == 2 {
				cos = append(cos, l)
			} else {
				choices = append(choices, l)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(labels, func(a, b *wireLabel) bool { return a.stamp < b.stamp })

	g := graph.New()
	stamps := map[event.Stamp]event.Stamp{0: 0}
	type pendingRf struct {
		r  *label.Read
		rf event.Event
	}
	var rfs []pendingRf
	for _, w := range labels {
		lab, err := w.label()
		if err != nil {
			return nil, err
		}
		pos := lab.Pos()
		if pos.Thread < 0 || pos.Index < 0 || pos.Index != g.ThreadSize(pos.Thread) ||
			(pos.Index > 0 && pos.Thread >= g.NumThreads()) || (pos.Thread == 0 && pos.Index == 0) {
			return nil, errors.Wrapf(ErrMalformed, "label %v out of place", pos)
		}
		stamps[w.stamp] = g.NextStamp()
		g.AddLabel(lab)
		if r, ok := lab.(*label.Read); ok && w.has(flagHasRf) {
			rfs = append(rfs, pendingRf{r, w.rf})
		}
	}
	for _, co := range cos {
		addr := label.SAddr(co.key)
		prev := event.Init()
		for _, e := range co.events {
			w := g.WriteLabel(e)
			if w == nil || w.Addr() != addr {
				return nil, errors.Wrapf(ErrMalformed, "coherence order of %v holds %v", addr, e)
			}
			g.MoveStoreCOAfter(w, prev)
			prev = e
		}
	}
	for _, p := range rfs {
		if !p.rf.IsInitializer() {
			if w := g.WriteLabel(p.rf); w == nil || w.Addr() != p.r.Addr() {
				return nil, errors.Wrapf(ErrMalformed, "read %v cannot read from %v", p.r.Pos(), p.rf)
			}
		}
		g.SetRf(p.r, p.rf)
	}
	cm := make(verifier.ChoiceMap)
	for _, c := range choices {
		s, ok := stamps[event.Stamp(c.key)]
		if !ok {
			continue
		}
		for _, alt := range c.events {
			cm.Add(s, alt)
		}
	}
	return &verifier.State{Graph: g, Choices: cm}, nil
}

func encodeReport(r *verifier.Report) []byte {
	var e encoder
	e.uint(1, uint64(r.Kind))
	e.event(2, r.Pos)
	e.event(3, r.Racy)
	e.bool(4, r.HasRacy)
	e.string(5, r.Msg)
	for _, line := range r.Trace {
		e.bytes(6, []byte(line))
	}
	e.string(7, r.Graph)
	return e.b
}

func decodeReport(b []byte) (*verifier.Report, error) {
	r := &verifier.Report{}
	err := fields(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			r.Kind = checking.ErrorKind(f.v)
		case 2:
			r.Pos, err = decodeEvent(f.b)
		case 3:
			r.Racy, err = decodeEvent(f.b)
		case 4:
			r.HasRacy = f.v != 0
		case 5:
			r.Msg = string(f.b)
		case 6:
			r.Trace = append(r.Trace, string(f.b))
		case 7:
			r.Graph = string(f.b)
		}
		return err
	})
	return r, err
}

// Encode the counters, reports and histograms of a result. The exploration
// tree stays with the worker.
func encodeResult(r *verifier.Result) []byte {
	var e encoder
	e.uint(1, uint64(r.Explored))
	e.uint(2, uint64(r.ExploredBlocked))
	e.uint(3, uint64(r.ExploredBounded))
	e.uint(4, uint64(r.Moot))
	if r.Error != nil {
		e.bytes(5, encodeReport(r.Error))
	}
	for _, w := range r.Warnings {
		e.bytes(6, encodeReport(w))
	}
	keys := maps.Keys(r.Outcomes)
	slices.Sort(keys)
	for _, k := range keys {
		var sub encoder
		sub.string(1, k)
		sub.uint(2, uint64(r.Outcomes[k]))
		e.bytes(7, sub.b)
	}
	for h, n := range r.Hashes {
		var sub encoder
		sub.bytes(1, h[:])
		sub.uint(2, uint64(n))
		e.bytes(8, sub.b)
	}
	return e.b
}

func decodeResult(b []byte) (*verifier.Result, error) {
	r := verifier.NewResult()
	err := fields(b, func(f field) error {
		switch f.num {
		case 1:
			r.Explored = int(f.v)
		case 2:
			r.ExploredBlocked = int(f.v)
		case 3:
			r.ExploredBounded = int(f.v)
		case 4:
			r.Moot = int(f.v)
		case 5, 6:
			rep, err := decodeReport(f.b)
			if err != nil {
				return err
			}
			if f.num == 5 {
				r.Error = rep
			} else {
				r.Warnings = append(r.Warnings, rep)
			}
		case 7, 8:
			var key []byte
			var n int
			err := fields(f.b, func(sf field) error {
				switch sf.num {
				case 1:
					key = sf.b
				case 2:
					n = int(sf.v)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if f.num == 7 {
				r.Outcomes[string(key)] += n
				return nil
			}
			var h [32]byte
			if len(key) != len(h) {
				return errors.Wrapf(ErrMalformed, "hash of %d bytes", len(key))
			}
			copy(h[:], key)
			r.Hashes[h] += n
		}
		return nil
	})
	return r, err
}

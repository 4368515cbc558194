package network

import "hexcell/protocol"

type floodEntry struct {
	origin uint32
	tag    uint8
	from   Port
	used   bool
}

// floodCache remembers recent floods and the port each arrived on, so
// duplicates are dropped and reports can retrace the path.
type floodCache struct {
	entries [FloodCacheSize]floodEntry
	next    int
}

func (c *floodCache) lookup(origin uint32, tag uint8) (Port, bool) {
	for _, e := range c.entries {
		if e.used && e.origin == origin && e.tag == tag {
			return e.from, true
		}
	}
	return NoPort, false
}

func (c *floodCache) remember(origin uint32, tag uint8, from Port) {
	c.entries[c.next] = floodEntry{origin: origin, tag: tag, from: from, used: true}
	c.next = (c.next + 1) % FloodCacheSize
}

// Enumerate floods the mesh asking every cell to report its id. Reports
// accumulate in Topology.
func (f *FSM) Enumerate() error {
	if !f.state.Settled() {
		return ErrNotSettled
	}
	tag := f.nextTag()
	f.seen.remember(f.uid, tag, NoPort)
	f.enumTag = tag
	f.topology = append(f.topology[:0], f.id)

	f.w.reset(QueryEnumerate, tag)
	f.w.u32(f.uid)
	f.w.u8(0)
	f.flood(NoPort)
	return nil
}

// Broadcast floods payload to every settled cell, this one included
func (f *FSM) Broadcast(payload []byte) error {
	if !f.state.Settled() {
		return ErrNotSettled
	}
	tag := f.nextTag()
	f.w.reset(QueryBroadcast, tag)
	f.w.u32(f.uid)
	f.w.u8(0)
	if !f.w.bytes(payload) {
		return ErrPayloadTooLarge
	}
	f.seen.remember(f.uid, tag, NoPort)
	f.flood(NoPort)
	f.deliver(QueryBroadcast, f.uid, payload)
	return nil
}

func (f *FSM) handleEnumerate(p Port, tag uint8, r *bodyReader) {
	origin := r.u32()
	hops := r.u8()
	if r.bad || !f.state.Settled() {
		f.stats.Dropped++
		return
	}
	if _, dup := f.seen.lookup(origin, tag); dup {
		return
	}
	f.seen.remember(origin, tag, p)

	if hops+1 < MaxHops {
		f.w.reset(QueryEnumerate, tag)
		f.w.u32(origin)
		f.w.u8(hops + 1)
		f.flood(p)
	}

	f.w.reset(QueryEnumerate, tag)
	f.w.u32(origin)
	f.w.id(f.id)
	f.reply(p, protocol.StatusOK)
}

// handleEnumerateReport collects a report at the origin, or passes it one
// hop back along the path the flood arrived by.
func (f *FSM) handleEnumerateReport(p Port, tag uint8, r *bodyReader) {
	origin := r.u32()
	reporter := r.id()
	if r.bad {
		f.stats.Dropped++
		return
	}
	if origin == f.uid {
		if tag != f.enumTag {
			f.stats.Dropped++
			return
		}
		f.addTopology(reporter)
		return
	}
	back, ok := f.seen.lookup(origin, tag)
	if !ok || back == NoPort {
		f.stats.Dropped++
		return
	}
	f.w.reset(QueryEnumerate, tag)
	f.w.u32(origin)
	f.w.id(reporter)
	if err := f.send(back, protocol.StatusOK, f.w.body()); err != nil {
		f.log.Warn("net: report on " + back.String() + ": " + err.Error())
		return
	}
	f.stats.Relayed++
}

func (f *FSM) handleBroadcast(p Port, tag uint8, r *bodyReader) {
	origin := r.u32()
	hops := r.u8()
	payload := r.rest()
	if r.bad || !f.state.Settled() {
		f.stats.Dropped++
		return
	}
	if _, dup := f.seen.lookup(origin, tag); dup {
		return
	}
	f.seen.remember(origin, tag, p)

	if hops+1 < MaxHops {
		f.w.reset(QueryBroadcast, tag)
		f.w.u32(origin)
		f.w.u8(hops + 1)
		f.w.bytes(payload)
		f.flood(p)
	}
	f.deliver(QueryBroadcast, origin, payload)
}

func (f *FSM) addTopology(id NetworkId) {
	for _, known := range f.topology {
		if known.UID == id.UID {
			return
		}
	}
	if len(f.topology) < MaxTopology {
		f.topology = append(f.topology, id)
	}
}

// flood sends the body in f.w to every connected port except skip
func (f *FSM) flood(skip Port) {
	for r := uint8(0); r < uint8(PortCount); r++ {
		p := PortOfRank(r)
		if p == skip || !f.ports[p].Connected() {
			continue
		}
		if err := f.send(p, protocol.StatusQuery, f.w.body()); err != nil {
			f.log.Warn("net: flood on " + p.String() + ": " + err.Error())
		}
	}
}

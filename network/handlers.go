package network

import (
	"hexcell/core"
	"hexcell/protocol"
)

// HandleMessage processes one inbound message. The header port is the
// port the message arrived on.
func (f *FSM) HandleMessage(m *protocol.Message) {
	p := Port(m.Header.Port)
	body := m.Body()
	if !p.Valid() || len(body) < bodyPrefix || !Query(body[0]).Valid() {
		f.stats.Dropped++
		f.log.Debug("net: malformed message dropped")
		return
	}
	q, tag := Query(body[0]), body[1]
	f.stats.Received++
	f.record(core.EvtMessageIn, uint8(p), uint32(q), uint32(m.Header.Status))

	r := bodyReader{data: body[bodyPrefix:]}
	switch m.Header.Status {
	case protocol.StatusQuery:
		f.handleRequest(p, q, tag, &r)
	case protocol.StatusOK, protocol.StatusNAK, protocol.StatusACK:
		f.handleResponse(p, q, tag, m.Header.Status, &r)
	case protocol.StatusError:
		if f.matches(p, q, tag) {
			f.enterError(protocol.InvalidConfiguration, q.String()+" refused on "+p.String())
		}
	default:
		f.stats.Dropped++
	}
}

func (f *FSM) handleRequest(p Port, q Query, tag uint8, r *bodyReader) {
	switch q {
	case QueryWhoAmI:
		asker := r.u32()
		if r.bad {
			f.stats.Dropped++
			return
		}
		f.answerWhoAmI(p, tag, asker)
	case QueryGetID:
		f.w.reset(QueryGetID, tag)
		if !f.state.Settled() {
			f.reply(p, protocol.StatusNAK)
			return
		}
		f.w.id(f.id)
		f.w.u32(f.rootUID)
		f.reply(p, protocol.StatusOK)
	case QuerySetID:
		assigned := r.id()
		root := r.u32()
		sender := r.id()
		senderParent := r.u32()
		senderHops := r.u8()
		if r.bad {
			f.stats.Dropped++
			return
		}
		f.handleSetID(p, tag, setIDOffer{assigned, root, sender, senderParent, senderHops})
	case QueryForward:
		f.relayForward(p, tag, r)
	case QueryRouteTo:
		f.handleRouteTo(p, tag, r)
	case QueryEnumerate:
		f.handleEnumerate(p, tag, r)
	case QueryBroadcast:
		f.handleBroadcast(p, tag, r)
	case QueryDetach:
		root := r.u32()
		if r.bad {
			f.stats.Dropped++
			return
		}
		f.handleDetach(p, root)
	}
}

// handleDetach follows the parent off a lost root. Notices from other
// neighbors or about another root are ignored.
func (f *FSM) handleDetach(p Port, root uint32) {
	if p != f.parent || !f.state.Settled() || root != f.rootUID {
		return
	}
	f.log.Info("net: parent on " + p.String() + " detached from " + core.Hex32(root))
	f.startDiscovery(Reroot)
}

func (f *FSM) answerWhoAmI(p Port, tag uint8, asker uint32) {
	f.w.reset(QueryWhoAmI, tag)
	if !f.state.Settled() {
		f.w.u32(f.uid)
		f.reply(p, protocol.StatusNAK)
		return
	}
	assigned := f.id.ComputeExternalID(p)
	f.ports[p].Address = NetworkId{X: assigned.X, Y: assigned.Y, UID: asker}
	f.w.id(assigned)
	f.w.id(f.id)
	f.w.u32(f.rootUID)
	f.w.u32(f.parentUID)
	f.w.u8(f.hops)
	f.reply(p, protocol.StatusOK)
}

// setIDOffer is the body of a SETID query
type setIDOffer struct {
	assigned     NetworkId
	root         uint32
	sender       NetworkId
	senderParent uint32
	senderHops   uint8
}

// handleSetID applies an identity offer. The parent is authoritative; any
// other neighbor wins only with a lower root uid, and never when it is one
// of our own children or may be a descendant cut off from our old root.
func (f *FSM) handleSetID(p Port, tag uint8, o setIDOffer) {
	if f.state == Error {
		f.stats.Dropped++
		return
	}
	f.ports[p].Address = o.sender
	root := o.root

	accept := false
	switch {
	case !f.state.Settled():
		accept = o.senderParent != f.uid && !f.refuse(root, o.senderHops)
	case p == f.parent:
		accept = !f.id.SameCoordinates(o.assigned.X, o.assigned.Y) || root != f.rootUID ||
			childHops(o.senderHops) != f.hops
		if !accept {
			f.parentUID = o.sender.UID
		}
	case o.senderParent == f.uid:
	case root < f.rootUID:
		accept = !f.refuse(root, o.senderHops)
	}

	if accept {
		f.adopt(p, o.assigned, root, o.sender, o.senderHops)
	}

	f.w.reset(QuerySetID, tag)
	f.w.id(f.id)
	if accept || p == f.parent || root == f.rootUID {
		f.reply(p, protocol.StatusOK)
		return
	}
	f.w.u32(f.rootUID)
	f.reply(p, protocol.StatusNAK)
	if root > f.rootUID && f.state.Settled() {
		// The sender follows a worse root; offer it ours
		if err := f.issue(outbound{port: p, query: QuerySetID}); err != nil {
			f.log.Warn("net: SETID to " + p.String() + ": " + err.Error())
		}
	}
}

func (f *FSM) handleResponse(p Port, q Query, tag uint8, status protocol.Status, r *bodyReader) {
	// Multi-hop responses may only be passing through
	switch q {
	case QueryRouteTo:
		f.handleRouteReply(p, tag, r)
		return
	case QueryEnumerate:
		f.handleEnumerateReport(p, tag, r)
		return
	}

	if !f.matches(p, q, tag) {
		f.stats.Dropped++
		f.log.Debug("net: unexpected " + q.String() + " response on " + p.String())
		return
	}

	switch q {
	case QueryWhoAmI:
		if status == protocol.StatusNAK {
			peer := r.u32()
			if r.bad {
				f.malformed(q, p)
				return
			}
			if f.lowestPeer == 0 || peer < f.lowestPeer {
				f.lowestPeer = peer
			}
			f.complete()
			return
		}
		assigned := r.id()
		responder := r.id()
		root := r.u32()
		responderParent := r.u32()
		responderHops := r.u8()
		if r.bad {
			f.malformed(q, p)
			return
		}
		f.complete()
		f.ports[p].Address = responder
		switch {
		case !f.discovering:
		case responderParent == f.uid:
			// Our own child cannot lead us back to the root
			f.excluded |= 1 << p
		case root == f.uid:
			f.becomeRoot()
		case f.refuse(root, responderHops):
			// Possibly our own descendant; ask again after the hold-down
		default:
			f.adopt(p, assigned, root, responder, responderHops)
		}
	case QueryGetID:
		if status == protocol.StatusOK {
			id := r.id()
			r.u32()
			if r.bad {
				f.malformed(q, p)
				return
			}
			f.ports[p].Address = id
		}
		f.complete()
	case QuerySetID:
		id := r.id()
		if r.bad {
			f.malformed(q, p)
			return
		}
		f.ports[p].Address = id
		f.complete()
	default:
		f.stats.Dropped++
	}
}

func (f *FSM) matches(p Port, q Query, tag uint8) bool {
	o := f.outstanding
	return o.active && o.query == q && o.tag == tag && (o.port == p || q == QueryRouteTo)
}

func (f *FSM) malformed(q Query, p Port) {
	f.enterError(protocol.InvalidMessageContents, q.String()+" response on "+p.String())
}

func (f *FSM) reply(p Port, status protocol.Status) {
	if err := f.send(p, status, f.w.body()); err != nil {
		f.log.Warn("net: reply on " + p.String() + ": " + err.Error())
	}
}

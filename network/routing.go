package network

import "hexcell/protocol"

// nextHop picks the neighbor that brings a message to (x, y). A neighbor
// with a known address that is strictly closer wins, ties broken by port
// rank. With none closer the message climbs toward the root; the root
// itself has nowhere left to go. The arrival port is never chosen.
func (f *FSM) nextHop(x, y int16, from Port) Port {
	best := NoPort
	bestDist := Distance(f.id.X, f.id.Y, x, y)
	for r := uint8(0); r < uint8(PortCount); r++ {
		p := PortOfRank(r)
		info := f.ports[p]
		if p == from || !info.Connected() || !info.Address.Assigned() {
			continue
		}
		if d := Distance(info.Address.X, info.Address.Y, x, y); d < bestDist {
			best, bestDist = p, d
		}
	}
	if best == NoPort && f.parent != NoPort && f.parent != from && f.ports[f.parent].Connected() {
		best = f.parent
	}
	return best
}

// Forward sends payload to the cell at (x, y). A payload addressed to this
// cell is delivered locally.
func (f *FSM) Forward(x, y int16, payload []byte) error {
	if !f.state.Settled() {
		return ErrNotSettled
	}
	if f.id.SameCoordinates(x, y) {
		f.deliver(QueryForward, f.uid, payload)
		return nil
	}
	p := f.nextHop(x, y, NoPort)
	if p == NoPort {
		return protocol.DestinationUnreachable
	}
	f.w.reset(QueryForward, f.nextTag())
	f.w.i16(x)
	f.w.i16(y)
	f.w.u8(0)
	f.w.id(f.id)
	if !f.w.bytes(payload) {
		return ErrPayloadTooLarge
	}
	return f.send(p, protocol.StatusQuery, f.w.body())
}

// RouteTo asks the cell at (x, y) to answer; the result appears in
// LastRoute once the reply arrives.
func (f *FSM) RouteTo(x, y int16) error {
	if !f.state.Settled() {
		return ErrNotSettled
	}
	if f.id.SameCoordinates(x, y) {
		f.lastRoute = RouteResult{TargetX: x, TargetY: y, Responder: f.id, Complete: true}
		return nil
	}
	return f.issue(outbound{query: QueryRouteTo, x: x, y: y})
}

func (f *FSM) relayForward(p Port, tag uint8, r *bodyReader) {
	x, y := r.i16(), r.i16()
	hops := r.u8()
	origin := r.id()
	payload := r.rest()
	if r.bad || !f.state.Settled() {
		f.stats.Dropped++
		return
	}
	if f.id.SameCoordinates(x, y) {
		f.deliver(QueryForward, origin.UID, payload)
		return
	}
	f.w.reset(QueryForward, tag)
	f.w.i16(x)
	f.w.i16(y)
	f.w.u8(hops + 1)
	f.w.id(origin)
	f.w.bytes(payload)
	f.relay(x, y, hops, p)
}

func (f *FSM) handleRouteTo(p Port, tag uint8, r *bodyReader) {
	x, y := r.i16(), r.i16()
	hops := r.u8()
	origin := r.id()
	if r.bad || !f.state.Settled() {
		f.stats.Dropped++
		return
	}
	if !f.id.SameCoordinates(x, y) {
		f.w.reset(QueryRouteTo, tag)
		f.w.i16(x)
		f.w.i16(y)
		f.w.u8(hops + 1)
		f.w.id(origin)
		f.relay(x, y, hops, p)
		return
	}

	// The reply travels back to the origin coordinates
	f.w.reset(QueryRouteTo, tag)
	f.w.i16(origin.X)
	f.w.i16(origin.Y)
	f.w.u8(0)
	f.w.id(f.id)
	f.w.u8(hops + 1)
	back := f.nextHop(origin.X, origin.Y, NoPort)
	if back == NoPort {
		back = p
	}
	f.reply(back, protocol.StatusOK)
}

func (f *FSM) handleRouteReply(p Port, tag uint8, r *bodyReader) {
	x, y := r.i16(), r.i16()
	hops := r.u8()
	responder := r.id()
	routeHops := r.u8()
	if r.bad || !f.state.Settled() {
		f.stats.Dropped++
		return
	}
	if !f.id.SameCoordinates(x, y) {
		f.w.reset(QueryRouteTo, tag)
		f.w.i16(x)
		f.w.i16(y)
		f.w.u8(hops + 1)
		f.w.id(responder)
		f.w.u8(routeHops)
		f.relayStatus(x, y, hops, p, protocol.StatusOK)
		return
	}
	if !f.matches(p, QueryRouteTo, tag) {
		f.stats.Dropped++
		return
	}
	f.lastRoute = RouteResult{
		TargetX:   f.lastRoute.TargetX,
		TargetY:   f.lastRoute.TargetY,
		Responder: responder,
		Hops:      routeHops,
		Complete:  true,
	}
	f.log.Debug("net: route to " + responder.String() + " complete")
	f.complete()
}

// relay sends the request body in f.w one hop closer to (x, y)
func (f *FSM) relay(x, y int16, hops uint8, from Port) {
	f.relayStatus(x, y, hops, from, protocol.StatusQuery)
}

func (f *FSM) relayStatus(x, y int16, hops uint8, from Port, status protocol.Status) {
	if hops+1 >= MaxHops {
		f.stats.Dropped++
		f.log.Debug("net: hop limit reached")
		return
	}
	next := f.nextHop(x, y, from)
	if next == NoPort {
		f.stats.Dropped++
		f.log.Debug("net: no route from " + f.id.String())
		return
	}
	if err := f.send(next, status, f.w.body()); err != nil {
		f.log.Warn("net: relay on " + next.String() + ": " + err.Error())
		return
	}
	f.stats.Relayed++
}

func (f *FSM) deliver(q Query, origin uint32, payload []byte) {
	if f.onPayload != nil {
		f.onPayload(Delivery{Query: q, OriginUID: origin, Payload: payload})
	}
}

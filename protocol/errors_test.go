package protocol

import (
	"errors"
	"testing"
)

func TestChainMatchesBothKinds(t *testing.T) {
	err := Chain(InvalidPort, DestinationUnreachable)

	if !errors.Is(err, DestinationUnreachable) {
		t.Error("errors.Is should match the network kind")
	}
	if !errors.Is(err, InvalidPort) {
		t.Error("errors.Is should match the phy cause")
	}

	var phy PhyError
	if !errors.As(err, &phy) || phy != InvalidPort {
		t.Errorf("errors.As(PhyError) = %v", phy)
	}
	var net NetworkError
	if !errors.As(err, &net) || net != DestinationUnreachable {
		t.Errorf("errors.As(NetworkError) = %v", net)
	}

	if err.Error() != "network: destination unreachable: phy: invalid port" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestChainWithoutCause(t *testing.T) {
	if err := Chain(nil, Timeout); err != Timeout {
		t.Errorf("Chain(nil, Timeout) = %v", err)
	}
}

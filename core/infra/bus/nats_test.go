package bus

import (
	"errors"
	"testing"
)

func TestPublishGuards(t *testing.T) {
	var b *NatsBus
	if err := b.Publish("deploy.index", struct{}{}); !errors.Is(err, errNilBus) {
		t.Errorf("nil bus publish = %v", err)
	}
	b = &NatsBus{}
	if err := b.Publish("deploy.index", struct{}{}); !errors.Is(err, errNilBus) {
		t.Errorf("unconnected bus publish = %v", err)
	}
}

func TestSubscribeGuards(t *testing.T) {
	var b *NatsBus
	err := b.Subscribe("deploy.index", "indexers", func([]byte) error { return nil })
	if !errors.Is(err, errNilBus) {
		t.Errorf("nil bus subscribe = %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	var b *NatsBus
	b.Close()
	(&NatsBus{}).Close()
}

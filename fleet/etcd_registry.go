package fleet

import (
	"context"
	"encoding/json"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdRegistry implements Registry using etcd v3, exactly the teacher's
// EtcdRegistry adapted from service instances to Nvim fleet instances: a
// TTL-leased key per endpoint under /nvimrpc/fleet/{name}/{addr}, renewed by
// etcd's KeepAlive until the registering process stops or crashes.
type EtcdRegistry struct {
	client *clientv3.Client
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, fmt.Errorf("fleet: connect etcd: %w", err)
	}
	return &EtcdRegistry{client: c}, nil
}

func fleetKey(name, addr string) string {
	return "/nvimrpc/fleet/" + name + "/" + addr
}

func fleetPrefix(name string) string {
	return "/nvimrpc/fleet/" + name + "/"
}

// Register puts inst under a TTL-leased key and starts background lease
// renewal. The lease id is a local variable, not stored on the struct, so
// registering the same name for multiple instances from one EtcdRegistry
// never races over which lease belongs to which key.
func (r *EtcdRegistry) Register(name string, inst Instance, ttlSeconds int64) error {
	ctx := context.Background()

	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return fmt.Errorf("fleet: grant lease: %w", err)
	}

	val, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("fleet: marshal instance: %w", err)
	}

	if _, err := r.client.Put(ctx, fleetKey(name, inst.Addr), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("fleet: put: %w", err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("fleet: keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes name's key for addr.
func (r *EtcdRegistry) Deregister(name string, addr string) error {
	if _, err := r.client.Delete(context.Background(), fleetKey(name, addr)); err != nil {
		return fmt.Errorf("fleet: delete: %w", err)
	}
	return nil
}

// Discover lists every instance currently registered under name.
func (r *EtcdRegistry) Discover(name string) ([]Instance, error) {
	resp, err := r.client.Get(context.Background(), fleetPrefix(name), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("fleet: get: %w", err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue // skip malformed entries rather than fail discovery outright
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch re-queries Discover on every change under name's prefix. etcd's
// watch API pushes the event; re-fetching the full list on any event is
// simpler than reconstructing state from individual put/delete events.
func (r *EtcdRegistry) Watch(name string) <-chan []Instance {
	ch := make(chan []Instance, 1)
	prefix := fleetPrefix(name)

	go func() {
		watchChan := r.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(name)
			if err != nil {
				continue
			}
			ch <- instances
		}
	}()

	return ch
}

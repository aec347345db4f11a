package client

import (
	"context"
	"obj-rpc/loadbalance"
	"obj-rpc/middleware"
	"obj-rpc/registry"
	"obj-rpc/server"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
)

func TestClientDiscovery(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	ts1, ts2 := startCalc(t), startCalc(t)
	reg.Register("Calc", registry.Instance{URL: ts1.URL + "/Calc", Weight: 10}, 10)
	reg.Register("Calc", registry.Instance{URL: ts2.URL + "/Calc", Weight: 10}, 10)

	cli := NewClient(reg, &loadbalance.RoundRobinBalancer{})
	cli.SetLogger(zaptest.NewLogger(t))

	seen := map[string]bool{}
	for i := 1; i <= 4; i++ {
		calc, err := cli.Proxy("Calc")
		if err != nil {
			t.Fatal(err)
		}
		seen[calc.Endpoint()] = true
		result, err := calc.Call("add", i, i*10)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		if n, _ := result.Int(); n != int64(i*11) {
			t.Fatalf("request %d: expect %d, got %v", i, i*11, result)
		}
	}
	if len(seen) != 2 {
		t.Fatalf("Expect both servers to be used, get %v", seen)
	}
}

func TestClientNoInstances(t *testing.T) {
	cli := NewClient(registry.NewMemoryRegistry(), nil)
	if _, err := cli.Proxy("Calc"); !errors.Is(err, loadbalance.ErrNoInstances) {
		t.Fatalf("Expect ErrNoInstances, get %v", err)
	}
}

// TestFullIntegrationWithEtcd runs a server that announces itself in etcd and
// a client that finds it there.
func TestFullIntegrationWithEtcd(t *testing.T) {
	reg, err := registry.NewEtcdRegistry([]string{"127.0.0.1:2379"})
	if err != nil {
		t.Skipf("etcd not available: %v", err)
	}
	defer reg.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.Ping(ctx); err != nil {
		t.Skipf("etcd not available: %v", err)
	}

	svr := server.NewServer(server.WithHost("127.0.0.1"), server.WithPort(19090),
		server.WithRegistry(reg, "http://127.0.0.1:19090"))
	svr.Use(middleware.LoggingMiddleware(zaptest.NewLogger(t)))
	if err := svr.Expose(&Calc{}, ""); err != nil {
		t.Fatal(err)
	}
	if err := svr.Start(); err != nil {
		t.Fatal(err)
	}
	defer svr.Shutdown(3 * time.Second)

	cli := NewClient(reg, &loadbalance.RoundRobinBalancer{})
	calc, err := cli.Proxy("Calc")
	if err != nil {
		t.Fatal(err)
	}
	result, err := calc.Call("add", 3, 5)
	if err != nil {
		t.Fatalf("Call add failed: %v", err)
	}
	if n, _ := result.Int(); n != 8 {
		t.Fatalf("add: expect 8, got %v", result)
	}
}

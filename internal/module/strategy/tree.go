// Package strategy hosts a tree of factor and signal nodes. The tree module
// reads its node list from the nested config block, wires every node to a
// context that can send orders and emit signals, and fans ticks and order
// updates out to the nodes on the publishing thread.
package strategy

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gopkg.in/yaml.v3"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

func init() {
	engine.Register("strategy", func() engine.Module { return &Module{} })
}

var (
	ErrUnknownNodeType = errors.New("strategy: unknown node type")
	ErrNoNodes         = errors.New("strategy: no nodes configured")
)

// Context gives a node its outward capabilities.
type Context struct {
	NodeID     string
	SendOrder  func(req *schema.OrderRequest)
	EmitSignal func(factor string, symbolName string, value float64)
}

// Node is one leaf of the strategy tree.
type Node interface {
	Init(ctx *Context, cfg map[string]string) error
	OnTick(tick *schema.Tick)
	OnOrder(rtn *schema.OrderReturn)
}

// NodeFactory builds a fresh node instance.
type NodeFactory func() Node

var nodeFactories = map[string]NodeFactory{}

// RegisterNode adds a node factory under a type name.
func RegisterNode(typ string, f NodeFactory) {
	nodeFactories[typ] = f
}

// treeConfig is the nested config block of the strategy module.
type treeConfig struct {
	Account string      `yaml:"account"`
	Nodes   []yaml.Node `yaml:"nodes"`
}

// nodeParams flattens one node mapping into string key/value pairs. Scalar
// values keep their literal YAML text, so numeric parameters survive.
func nodeParams(node yaml.Node) map[string]string {
	params := make(map[string]string)
	if node.Kind != yaml.MappingNode {
		return params
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind == yaml.ScalarNode && v.Kind == yaml.ScalarNode {
			params[k.Value] = v.Value
		}
	}
	return params
}

// Module is the strategy tree host.
type Module struct {
	b       *bus.Bus
	account string
	nodes   []Node
}

// Init decodes the node list from the raw config tree and initialises every
// node.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, _ engine.TimerService) error {
	m.b = b
	if cfg.Raw == nil {
		return ErrNoNodes
	}
	var tree treeConfig
	if err := cfg.Raw.Decode(&tree); err != nil {
		return errors.Wrap(err, "decode strategy tree")
	}
	if len(tree.Nodes) == 0 {
		return ErrNoNodes
	}
	m.account = tree.Account

	for _, raw := range tree.Nodes {
		params := nodeParams(raw)
		id, typ := params["id"], params["type"]
		factory, ok := nodeFactories[typ]
		if !ok {
			return errors.Wrap(ErrUnknownNodeType, typ)
		}
		node := factory()
		ctx := &Context{
			NodeID:     id,
			SendOrder:  m.sendOrder,
			EmitSignal: m.emitSignal(id),
		}
		if err := node.Init(ctx, params); err != nil {
			return errors.Wrapf(err, "init node %s", id)
		}
		m.nodes = append(m.nodes, node)
		logs.Infof("strategy: node %s (%s) ready", id, typ)
	}

	b.Subscribe(bus.TopicMarketData, func(p any) {
		if tick, ok := p.(*schema.Tick); ok {
			for _, n := range m.nodes {
				n.OnTick(tick)
			}
		}
	})
	b.Subscribe(bus.TopicRtnOrder, func(p any) {
		if rtn, ok := p.(*schema.OrderReturn); ok {
			for _, n := range m.nodes {
				n.OnOrder(rtn)
			}
		}
	})
	return nil
}

// Start is a no-op; nodes run on the publishing thread.
func (m *Module) Start() error { return nil }

// Stop is a no-op.
func (m *Module) Stop() error { return nil }

func (m *Module) sendOrder(req *schema.OrderRequest) {
	if req.AccountID[0] == 0 {
		schema.PutString(req.AccountID[:], m.account)
	}
	m.b.Publish(bus.TopicOrderReq, req)
}

func (m *Module) emitSignal(nodeID string) func(string, string, float64) {
	return func(factor, symbolName string, value float64) {
		sig := &schema.SignalRecord{
			Value:     value,
			Timestamp: time.Now().UnixNano(),
		}
		schema.PutString(sig.NodeID[:], nodeID)
		schema.PutString(sig.Symbol[:], symbolName)
		schema.PutString(sig.Factor[:], factor)
		m.b.Publish(bus.TopicSignal, sig)
	}
}

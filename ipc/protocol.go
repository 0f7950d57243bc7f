package ipc

import (
	"encoding/json"
	"fmt"
	"net/netip"

	"github.com/yllada/vpn-client/common"
)

// Message type numbers for GUI to tunnel service messages.
const (
	typeConnect = iota + 1
	typeDisconnect
	typeReset
	typeSetDNS
	typeSetDisabledResources
	typeApplyLogFilter
	typeClearLogs
	typeStartTelemetry
)

// Message type numbers for tunnel service to GUI messages.
const (
	typeHello = iota + 1
	typeConnectResult
	typeOnUpdateResources
	typeOnDisconnect
	typeClearedLogs
	typeTunnelReady
	typeTerminatingGracefully
	typeDisconnectedGracefully
)

// ResourceType classifies a Resource.
type ResourceType string

const (
	ResourceDNS      ResourceType = "dns"
	ResourceCIDR     ResourceType = "cidr"
	ResourceIP       ResourceType = "ip"
	ResourceInternet ResourceType = "internet"
)

// Resource is a destination reachable through the tunnel.
type Resource struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Address string       `json:"address,omitempty"`
	Type    ResourceType `json:"type"`
	Status  string       `json:"status,omitempty"`
}

// IsInternetResource reports whether r is the catch-all default route.
func (r Resource) IsInternetResource() bool {
	return r.Type == ResourceInternet
}

// ClientMsg is a command from the GUI to the tunnel service.
type ClientMsg interface {
	clientMsgType() int
}

// Connect asks the service to sign in to the portal and raise the tunnel.
type Connect struct {
	APIURL string
	Token  common.Secret
}

// Disconnect tears the tunnel down. It is a no-op if already disconnected.
type Disconnect struct{}

// Reset tells the tunnel the network changed under it.
type Reset struct{}

// SetDNS hands the system resolvers to the tunnel.
type SetDNS struct {
	Resolvers []netip.Addr
}

// SetDisabledResources replaces the set of resources the tunnel must not route.
type SetDisabledResources struct {
	IDs []string
}

// ApplyLogFilter changes the service's log filter.
type ApplyLogFilter struct {
	Directives string
}

// ClearLogs asks the service to delete its logs.
type ClearLogs struct{}

// StartTelemetry sets the error-reporting context of the service.
type StartTelemetry struct {
	Environment string
	Release     string
	AccountSlug *string
}

func (Connect) clientMsgType() int              { return typeConnect }
func (Disconnect) clientMsgType() int           { return typeDisconnect }
func (Reset) clientMsgType() int                { return typeReset }
func (SetDNS) clientMsgType() int               { return typeSetDNS }
func (SetDisabledResources) clientMsgType() int { return typeSetDisabledResources }
func (ApplyLogFilter) clientMsgType() int       { return typeApplyLogFilter }
func (ClearLogs) clientMsgType() int            { return typeClearLogs }
func (StartTelemetry) clientMsgType() int       { return typeStartTelemetry }

// ServerMsg is an event from the tunnel service to the GUI.
type ServerMsg interface {
	serverMsgType() int
}

// Hello is always the first message on a new connection.
type Hello struct{}

// ConnectErrorKind tells transient connect failures from permanent ones.
type ConnectErrorKind string

const (
	// ConnectErrorIO is a network problem; retrying later may succeed.
	ConnectErrorIO ConnectErrorKind = "io"
	// ConnectErrorOther is anything else, e.g. a rejected token.
	ConnectErrorOther ConnectErrorKind = "other"
)

// ConnectError is a failed Connect.
type ConnectError struct {
	Kind    ConnectErrorKind `json:"kind"`
	Message string           `json:"message"`
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed (%s): %s", e.Kind, e.Message)
}

// ConnectResult answers Connect. Err is nil on success.
type ConnectResult struct {
	Err *ConnectError
}

// OnUpdateResources is a full snapshot of the resource list.
type OnUpdateResources struct {
	Resources []Resource
}

// OnDisconnect means the tunnel went down on its own.
type OnDisconnect struct {
	ErrorMsg              string
	IsAuthenticationError bool
}

// ClearedLogs answers ClearLogs. Err is empty on success.
type ClearedLogs struct {
	Err string
}

// TunnelReady means the tunnel is up and routing.
type TunnelReady struct{}

// TerminatingGracefully means the service itself is shutting down.
type TerminatingGracefully struct{}

// DisconnectedGracefully answers a Disconnect.
type DisconnectedGracefully struct{}

func (Hello) serverMsgType() int                  { return typeHello }
func (ConnectResult) serverMsgType() int          { return typeConnectResult }
func (OnUpdateResources) serverMsgType() int      { return typeOnUpdateResources }
func (OnDisconnect) serverMsgType() int           { return typeOnDisconnect }
func (ClearedLogs) serverMsgType() int            { return typeClearedLogs }
func (TunnelReady) serverMsgType() int            { return typeTunnelReady }
func (TerminatingGracefully) serverMsgType() int  { return typeTerminatingGracefully }
func (DisconnectedGracefully) serverMsgType() int { return typeDisconnectedGracefully }

// Wire payloads. Secrets are exposed only here.
type (
	connectWire struct {
		APIURL string `json:"api_url"`
		Token  string `json:"token"`
	}
	setDNSWire struct {
		Resolvers []netip.Addr `json:"resolvers"`
	}
	setDisabledWire struct {
		IDs []string `json:"ids"`
	}
	logFilterWire struct {
		Directives string `json:"directives"`
	}
	telemetryWire struct {
		Environment string  `json:"environment"`
		Release     string  `json:"release"`
		AccountSlug *string `json:"account_slug,omitempty"`
	}
	connectResultWire struct {
		Err *ConnectError `json:"error,omitempty"`
	}
	resourcesWire struct {
		Resources []Resource `json:"resources"`
	}
	onDisconnectWire struct {
		ErrorMsg              string `json:"error_msg"`
		IsAuthenticationError bool   `json:"is_authentication_error"`
	}
	clearedLogsWire struct {
		Err string `json:"error,omitempty"`
	}
)

// EncodeClientMsg frames m.
func EncodeClientMsg(m ClientMsg) (int, []byte, error) {
	var payload interface{}
	switch m := m.(type) {
	case Connect:
		payload = connectWire{APIURL: m.APIURL, Token: m.Token.Expose()}
	case SetDNS:
		payload = setDNSWire{Resolvers: m.Resolvers}
	case SetDisabledResources:
		payload = setDisabledWire{IDs: m.IDs}
	case ApplyLogFilter:
		payload = logFilterWire{Directives: m.Directives}
	case StartTelemetry:
		payload = telemetryWire{Environment: m.Environment, Release: m.Release, AccountSlug: m.AccountSlug}
	case Disconnect, Reset, ClearLogs:
		return m.clientMsgType(), nil, nil
	default:
		return 0, nil, fmt.Errorf("unknown client message %T", m)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	return m.clientMsgType(), data, nil
}

// DecodeClientMsg parses a frame sent by the GUI.
func DecodeClientMsg(msgType int, data []byte) (ClientMsg, error) {
	switch msgType {
	case typeConnect:
		var w connectWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode Connect: %w", err)
		}
		return Connect{APIURL: w.APIURL, Token: common.NewSecret(w.Token)}, nil
	case typeDisconnect:
		return Disconnect{}, nil
	case typeReset:
		return Reset{}, nil
	case typeSetDNS:
		var w setDNSWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode SetDNS: %w", err)
		}
		return SetDNS{Resolvers: w.Resolvers}, nil
	case typeSetDisabledResources:
		var w setDisabledWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode SetDisabledResources: %w", err)
		}
		return SetDisabledResources{IDs: w.IDs}, nil
	case typeApplyLogFilter:
		var w logFilterWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode ApplyLogFilter: %w", err)
		}
		return ApplyLogFilter{Directives: w.Directives}, nil
	case typeClearLogs:
		return ClearLogs{}, nil
	case typeStartTelemetry:
		var w telemetryWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode StartTelemetry: %w", err)
		}
		return StartTelemetry{Environment: w.Environment, Release: w.Release, AccountSlug: w.AccountSlug}, nil
	default:
		return nil, fmt.Errorf("unknown client message type %d", msgType)
	}
}

// EncodeServerMsg frames m.
func EncodeServerMsg(m ServerMsg) (int, []byte, error) {
	var payload interface{}
	switch m := m.(type) {
	case ConnectResult:
		payload = connectResultWire{Err: m.Err}
	case OnUpdateResources:
		payload = resourcesWire{Resources: m.Resources}
	case OnDisconnect:
		payload = onDisconnectWire{ErrorMsg: m.ErrorMsg, IsAuthenticationError: m.IsAuthenticationError}
	case ClearedLogs:
		payload = clearedLogsWire{Err: m.Err}
	case Hello, TunnelReady, TerminatingGracefully, DisconnectedGracefully:
		return m.serverMsgType(), nil, nil
	default:
		return 0, nil, fmt.Errorf("unknown server message %T", m)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	return m.serverMsgType(), data, nil
}

// DecodeServerMsg parses a frame sent by the tunnel service.
func DecodeServerMsg(msgType int, data []byte) (ServerMsg, error) {
	switch msgType {
	case typeHello:
		return Hello{}, nil
	case typeConnectResult:
		var w connectResultWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode ConnectResult: %w", err)
		}
		return ConnectResult{Err: w.Err}, nil
	case typeOnUpdateResources:
		var w resourcesWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode OnUpdateResources: %w", err)
		}
		return OnUpdateResources{Resources: w.Resources}, nil
	case typeOnDisconnect:
		var w onDisconnectWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode OnDisconnect: %w", err)
		}
		return OnDisconnect{ErrorMsg: w.ErrorMsg, IsAuthenticationError: w.IsAuthenticationError}, nil
	case typeClearedLogs:
		var w clearedLogsWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode ClearedLogs: %w", err)
		}
		return ClearedLogs{Err: w.Err}, nil
	case typeTunnelReady:
		return TunnelReady{}, nil
	case typeTerminatingGracefully:
		return TerminatingGracefully{}, nil
	case typeDisconnectedGracefully:
		return DisconnectedGracefully{}, nil
	default:
		return nil, fmt.Errorf("unknown server message type %d", msgType)
	}
}

package mapbridge

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/models"
)

// captureSink 记录投递消息的测试替身
type captureSink struct {
	messages [][]byte
	sendErr  error
}

func (s *captureSink) Send(message []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.messages = append(s.messages, message)
	return nil
}

func decode(t *testing.T, data []byte) Message {
	t.Helper()
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestMessagesBufferedUntilSurfaceReady(t *testing.T) {
	sink := &captureSink{}
	b := NewBridge(zap.NewNop())
	b.AttachSink(sink)

	b.Init(-23.5505, -46.6333, 15)
	b.CenterMap(-23.5, -46.6, 17)
	require.Empty(t, sink.messages)

	b.SurfaceReady()

	// 按入队顺序冲刷
	require.Len(t, sink.messages, 2)
	require.Equal(t, MsgTypeInit, decode(t, sink.messages[0]).Type)
	require.Equal(t, MsgTypeCenterMap, decode(t, sink.messages[1]).Type)
}

func TestMessagesPassThroughAfterReady(t *testing.T) {
	sink := &captureSink{}
	b := NewBridge(zap.NewNop())
	b.AttachSink(sink)
	b.SurfaceReady()

	b.ClearHistory()
	require.Len(t, sink.messages, 1)
	require.Equal(t, MsgTypeClearHistorico, decode(t, sink.messages[0]).Type)
}

func TestSurfaceLostResumesBuffering(t *testing.T) {
	sink := &captureSink{}
	b := NewBridge(zap.NewNop())
	b.AttachSink(sink)
	b.SurfaceReady()
	require.True(t, b.Ready())

	b.SurfaceLost()
	require.False(t, b.Ready())

	b.CenterMap(-23.5, -46.6, 15)
	require.Empty(t, sink.messages)

	// 表面重连后补投
	next := &captureSink{}
	b.AttachSink(next)
	b.SurfaceReady()
	require.Len(t, next.messages, 1)
	require.Equal(t, MsgTypeCenterMap, decode(t, next.messages[0]).Type)
}

func TestUpdateVehiclesSkipsVehiclesWithoutPosition(t *testing.T) {
	sink := &captureSink{}
	b := NewBridge(zap.NewNop())
	b.AttachSink(sink)
	b.SurfaceReady()

	vehicles := []models.Vehicle{
		{ID: "1", Plate: "ABC1D23", Brand: "Fiat", Model: "Argo",
			Position: &models.Position{Latitude: -23.55, Longitude: -46.63}},
		{ID: "2", Plate: "XYZ9K88", Brand: "VW", Model: "Gol"},
	}

	b.UpdateVehicles(vehicles, "1")

	require.Len(t, sink.messages, 1)
	msg := decode(t, sink.messages[0])
	require.Equal(t, MsgTypeUpdateVeiculos, msg.Type)
	require.Equal(t, "1", msg.SelectedID)
	require.Len(t, msg.Veiculos, 1)
	require.Equal(t, "ABC1D23", msg.Veiculos[0].Plate)
}

func TestUpdateHistoryEncoding(t *testing.T) {
	sink := &captureSink{}
	b := NewBridge(zap.NewNop())
	b.AttachSink(sink)
	b.SurfaceReady()

	b.UpdateHistory([]PathPoint{
		{Latitude: -23.55, Longitude: -46.63},
		{Latitude: -23.56, Longitude: -46.64},
	})

	msg := decode(t, sink.messages[0])
	require.Equal(t, MsgTypeUpdateHistorico, msg.Type)
	require.Len(t, msg.Historico, 2)
}

func TestChangeLayer(t *testing.T) {
	sink := &captureSink{}
	b := NewBridge(zap.NewNop())
	b.AttachSink(sink)
	b.SurfaceReady()

	b.ChangeLayer(LayerSatellite)

	msg := decode(t, sink.messages[0])
	require.Equal(t, MsgTypeChangeMapType, msg.Type)
	require.Equal(t, LayerSatellite, msg.MapType)
}

func TestSendFailureIsSwallowed(t *testing.T) {
	sink := &captureSink{sendErr: fmt.Errorf("surface gone")}
	b := NewBridge(zap.NewNop())
	b.AttachSink(sink)
	b.SurfaceReady()

	// 投递即忘：失败不向调用方传播
	b.CenterMap(-23.5, -46.6, 15)
}

func TestMessagesBufferedWithoutSink(t *testing.T) {
	b := NewBridge(zap.NewNop())

	b.Init(-23.5505, -46.6333, 15)

	sink := &captureSink{}
	b.AttachSink(sink)
	b.SurfaceReady()
	require.Len(t, sink.messages, 1)
}

package surface

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// socketSink websocket 消息接收端，带发送缓冲与独立写协程
type socketSink struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

// newSocketSink 包装 websocket 连接
func newSocketSink(conn *websocket.Conn) *socketSink {
	return &socketSink{
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Send 入队消息；缓冲满视为慢消费者，直接丢弃并报错
func (s *socketSink) Send(message []byte) error {
	select {
	case s.send <- message:
		return nil
	default:
		return fmt.Errorf("surface send buffer full")
	}
}

// writePump 发送消息
func (s *socketSink) writePump() {
	defer s.conn.Close()

	for message := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// close 关闭发送通道与连接
func (s *socketSink) close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

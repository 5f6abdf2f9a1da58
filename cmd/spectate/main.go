// Command spectate is a terminal viewer for a running engine: it subscribes
// to the inspector WebSocket and draws the entity front buffer top-down.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"

	"starhollow/engine/internal/net/inspector"
)

type viewer struct {
	screen tcell.Screen

	mu        sync.Mutex
	state     inspector.StateMessage
	connected bool
	lastErr   error
}

func newViewer() (*viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return &viewer{screen: screen}, nil
}

func (v *viewer) setState(msg inspector.StateMessage) {
	v.mu.Lock()
	v.state = msg
	v.connected = true
	v.lastErr = nil
	v.mu.Unlock()
}

func (v *viewer) setError(err error) {
	v.mu.Lock()
	v.connected = false
	v.lastErr = err
	v.mu.Unlock()
}

// subscribe keeps a WebSocket session open against the engine, feeding
// state messages into the viewer. Reconnects with a flat backoff.
func (v *viewer) subscribe(url string) {
	for {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			v.setError(err)
			time.Sleep(time.Second)
			continue
		}
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				v.setError(err)
				break
			}
			var msg inspector.StateMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			if msg.Type == "state" {
				v.setState(msg)
			}
		}
		conn.Close()
		time.Sleep(time.Second)
	}
}

func (v *viewer) draw() {
	v.mu.Lock()
	state := v.state
	connected := v.connected
	lastErr := v.lastErr
	v.mu.Unlock()

	v.screen.Clear()
	width, height := v.screen.Size()

	status := fmt.Sprintf(" frame %d | entities %d | cameras %d | audio %d | debug %d ",
		state.Frame, len(state.Entities), len(state.Cameras), len(state.Audio), len(state.Debug))
	if !connected {
		status = " disconnected "
		if lastErr != nil {
			status = fmt.Sprintf(" disconnected: %v ", lastErr)
		}
	}
	drawText(v.screen, 0, 0, tcell.StyleDefault.Reverse(true), pad(status, width))

	// Top-down projection: world X maps to columns, world Z to rows, origin
	// at the center of the remaining area.
	originX := width / 2
	originY := (height-1)/2 + 1
	scale := float64(height) / 24
	if scale <= 0 {
		scale = 1
	}

	for _, d := range state.Debug {
		if !d.Active {
			continue
		}
		x := originX + int(d.To.X*scale*2)
		y := originY + int(d.To.Z*scale)
		putRune(v.screen, x, y, width, height, '·', tcell.StyleDefault.Foreground(tcell.ColorGreen))
	}
	for _, e := range state.Entities {
		style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(
			int32(e.Tint.R*255), int32(e.Tint.G*255), int32(e.Tint.B*255)))
		ch := '●'
		if !e.Active {
			ch = '○'
		}
		x := originX + int(e.Position.X*scale*2)
		y := originY + int(e.Position.Z*scale)
		putRune(v.screen, x, y, width, height, ch, style)
	}

	v.screen.Show()
}

func putRune(screen tcell.Screen, x, y, width, height int, ch rune, style tcell.Style) {
	if x < 0 || x >= width || y < 1 || y >= height {
		return
	}
	screen.SetContent(x, y, ch, nil, style)
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, ch := range text {
		screen.SetContent(x+i, y, ch, nil, style)
	}
}

func pad(s string, width int) string {
	for len(s) < width {
		s += " "
	}
	return s
}

func (v *viewer) run() {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			eventChan <- v.screen.PollEvent()
		}
	}()

	for {
		select {
		case ev := <-eventChan:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return
				}
			case *tcell.EventResize:
				v.screen.Sync()
			}
		case <-ticker.C:
			v.draw()
		}
	}
}

func main() {
	addr := flag.String("addr", "localhost:8080", "engine address")
	flag.Parse()

	v, err := newViewer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize screen: %v\n", err)
		os.Exit(1)
	}
	defer v.screen.Fini()

	go v.subscribe("ws://" + *addr + "/ws")
	v.run()
}

package modbus

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
)

const (
	functionReadCoils          = 0x01
	functionReadDiscreteInputs = 0x02
	functionReadHoldingRegs    = 0x03
	functionReadInputRegs      = 0x04

	exceptionIllegalFunction = 0x01
	exceptionIllegalDataAddr = 0x02
	exceptionIllegalDataVal  = 0x03
	exceptionTargetFailed    = 0x0B
)

var (
	errOutOfRange    = errors.New("out of range")
	errInvalidQty    = errors.New("invalid quantity")
	errInvalidPDULen = errors.New("invalid pdu length")
	errUnknownUnit   = errors.New("unknown unit")
)

// bank is the register image of one unit. Banks are replaced wholesale,
// never mutated, so readers only need the server lock to fetch one.
type bank struct {
	holding  []uint16
	input    []uint16
	coils    []bool
	discrete []bool
}

// Server implements a minimal read-only Modbus TCP server. Each unit id
// addresses its own register bank.
type Server struct {
	listener  net.Listener
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	units map[uint8]*bank
}

// NewServer constructs a server with no units.
func NewServer() *Server {
	return &Server{
		units: make(map[uint8]*bank),
		quit:  make(chan struct{}),
	}
}

// Listen starts accepting Modbus TCP connections on the provided address.
func (s *Server) Listen(address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.listener = l

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr is the bound listen address, useful after listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetUnit replaces the register image of unit. Holding registers mirror
// input registers and coils mirror discrete inputs.
func (s *Server) SetUnit(unit uint8, input []uint16, discrete []bool) {
	b := &bank{
		input:    append([]uint16(nil), input...),
		discrete: append([]bool(nil), discrete...),
	}
	b.holding = b.input
	b.coils = b.discrete

	s.mu.Lock()
	s.units[unit] = b
	s.mu.Unlock()
}

// RemoveUnit drops unit; requests for it then fail with an exception.
func (s *Server) RemoveUnit(unit uint8) {
	s.mu.Lock()
	delete(s.units, unit)
	s.mu.Unlock()
}

func (s *Server) unit(id uint8) (*bank, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.units[id]
	return b, ok
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.quit:
			conn.Close()
		case <-done:
		}
	}()

	header := make([]byte, 7)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}

		length := binary.BigEndian.Uint16(header[4:6])
		if length <= 1 {
			continue
		}

		unitID := header[6]
		pdu := make([]byte, int(length-1))
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}

		response := s.handlePDU(unitID, pdu)

		// the transaction and protocol ids in header[0:4] are echoed back
		binary.BigEndian.PutUint16(header[4:6], uint16(len(response)+1))

		if _, err := conn.Write(append(header, response...)); err != nil {
			return
		}
	}
}

func (s *Server) handlePDU(unitID uint8, pdu []byte) []byte {
	if len(pdu) == 0 {
		return exceptionResponse(0, exceptionIllegalFunction)
	}

	function := pdu[0]
	b, ok := s.unit(unitID)
	if !ok {
		return exceptionResponse(function, errToCode(errUnknownUnit))
	}

	var (
		data []byte
		err  error
	)
	switch function {
	case functionReadCoils:
		data, err = readBits(b.coils, pdu)
	case functionReadDiscreteInputs:
		data, err = readBits(b.discrete, pdu)
	case functionReadHoldingRegs:
		data, err = readRegisters(b.holding, pdu)
	case functionReadInputRegs:
		data, err = readRegisters(b.input, pdu)
	default:
		return exceptionResponse(function, exceptionIllegalFunction)
	}
	if err != nil {
		return exceptionResponse(function, errToCode(err))
	}
	return append([]byte{function, byte(len(data))}, data...)
}

func readBits(source []bool, pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return nil, errInvalidPDULen
	}
	start := binary.BigEndian.Uint16(pdu[1:3])
	quantity := binary.BigEndian.Uint16(pdu[3:5])
	if quantity == 0 || quantity > 2000 {
		return nil, errInvalidQty
	}
	end := int(start) + int(quantity)
	if end > len(source) {
		return nil, errOutOfRange
	}

	result := make([]byte, (int(quantity)+7)/8)
	for i := 0; i < int(quantity); i++ {
		if source[int(start)+i] {
			result[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return result, nil
}

func readRegisters(source []uint16, pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return nil, errInvalidPDULen
	}
	start := binary.BigEndian.Uint16(pdu[1:3])
	quantity := binary.BigEndian.Uint16(pdu[3:5])
	if quantity == 0 || quantity > 125 {
		return nil, errInvalidQty
	}
	end := int(start) + int(quantity)
	if end > len(source) {
		return nil, errOutOfRange
	}

	result := make([]byte, quantity*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:(i+1)*2], source[int(start)+i])
	}
	return result, nil
}

func exceptionResponse(function byte, code byte) []byte {
	return []byte{function | 0x80, code}
}

func errToCode(err error) byte {
	switch {
	case errors.Is(err, errOutOfRange):
		return exceptionIllegalDataAddr
	case errors.Is(err, errInvalidQty), errors.Is(err, errInvalidPDULen):
		return exceptionIllegalDataVal
	case errors.Is(err, errUnknownUnit):
		return exceptionTargetFailed
	default:
		return exceptionIllegalFunction
	}
}

// Close stops the server and waits for all goroutines to exit.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.wg.Wait()
}

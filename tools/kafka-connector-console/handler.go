package main

import (
	"log"

	kafkaconnector "github.com/fishbach/cflib-sub001"
)

type fetchResult struct {
	correlationID int32
	messages      []*kafkaconnector.Message
	firstOffset   int64
	err           kafkaconnector.KError
}

type offsetResult struct {
	correlationID int32
	offset        int64
	err           kafkaconnector.KError
}

type groupChange struct {
	state      kafkaconnector.GroupState
	assignment map[string][]int32
}

// consoleHandler turns connector callbacks into channel sends. The connector
// goroutine must never block, so a full channel drops the event.
type consoleHandler struct {
	kafkaconnector.NopHandler

	states  chan kafkaconnector.State
	fetches chan fetchResult
	offsets chan offsetResult
	groups  chan groupChange
}

func newConsoleHandler() *consoleHandler {
	return &consoleHandler{
		states:  make(chan kafkaconnector.State, 16),
		fetches: make(chan fetchResult, 16),
		offsets: make(chan offsetResult, 16),
		groups:  make(chan groupChange, 16),
	}
}

func (h *consoleHandler) StateChanged(state kafkaconnector.State) {
	select {
	case h.states <- state:
	default:
		log.Println("dropped connector state", state)
	}
}

func (h *consoleHandler) FetchResponse(correlationID int32, messages []*kafkaconnector.Message, firstOffset, highWaterMark int64, err kafkaconnector.KError) {
	select {
	case h.fetches <- fetchResult{correlationID: correlationID, messages: messages, firstOffset: firstOffset, err: err}:
	default:
		log.Println("dropped fetch response", correlationID)
	}
}

func (h *consoleHandler) OffsetResponse(correlationID int32, err kafkaconnector.KError, offset int64) {
	select {
	case h.offsets <- offsetResult{correlationID: correlationID, offset: offset, err: err}:
	default:
		log.Println("dropped offset response", correlationID)
	}
}

func (h *consoleHandler) GroupStateChanged(state kafkaconnector.GroupState, assignment map[string][]int32) {
	select {
	case h.groups <- groupChange{state: state, assignment: assignment}:
	default:
		log.Println("dropped group state", state)
	}
}

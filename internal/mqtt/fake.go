package mqtt

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	Buttons        []ButtonEvent
	Tasks          []TaskEvent
	SystemEvents   []SystemEvent
	Payloads       [][]byte // button and task payloads in publish order
	SystemPayloads [][]byte

	// PublishError, if set, is returned by PublishButton and PublishTask.
	PublishError error
	// PublishSystemError, if set, is returned by PublishSystem.
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) PublishButton(event ButtonEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatButtonPayload(event)
	if err != nil {
		return err
	}
	f.Buttons = append(f.Buttons, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishTask(event TaskEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatTaskPayload(event)
	if err != nil {
		return err
	}
	f.Tasks = append(f.Tasks, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears everything recorded so far.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}

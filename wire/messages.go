package wire

// Device identifies a participant: a stable id, a human-readable name, a
// coarse device-type tag, and the protocol version it speaks.
type Device struct {
	Id              string
	Name            string
	DeviceType      int32
	ProtocolVersion int32
}

func (m *Device) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *Device) MarshalTo(dst []byte) ([]byte, error) {
	dst = appendStringField(dst, 1, m.Id)
	dst = appendStringField(dst, 2, m.Name)
	dst = appendVarintField(dst, 3, uint64(m.DeviceType))
	dst = appendVarintField(dst, 4, uint64(m.ProtocolVersion))
	return dst, nil
}

func (m *Device) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			m.Id = string(b)
		case 2:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			m.Name = string(b)
		case 3:
			v, err := r.varint()
			if err != nil {
				return err
			}
			m.DeviceType = int32(v)
		case 4:
			v, err := r.varint()
			if err != nil {
				return err
			}
			m.ProtocolVersion = int32(v)
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// TcpConnectionInfo advertises a reachable TCP endpoint.
type TcpConnectionInfo struct {
	Hostname string
	Port     uint32
}

func (m *TcpConnectionInfo) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *TcpConnectionInfo) MarshalTo(dst []byte) ([]byte, error) {
	dst = appendStringField(dst, 1, m.Hostname)
	dst = appendVarintField(dst, 2, uint64(m.Port))
	return dst, nil
}

func (m *TcpConnectionInfo) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			m.Hostname = string(b)
		case 2:
			v, err := r.varint()
			if err != nil {
				return err
			}
			m.Port = uint32(v)
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// BluetoothLeConnectionInfo advertises a reachable BLE L2CAP endpoint.
type BluetoothLeConnectionInfo struct {
	Uuid string
	Psm  uint32
}

func (m *BluetoothLeConnectionInfo) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *BluetoothLeConnectionInfo) MarshalTo(dst []byte) ([]byte, error) {
	dst = appendStringField(dst, 1, m.Uuid)
	dst = appendVarintField(dst, 2, uint64(m.Psm))
	return dst, nil
}

func (m *BluetoothLeConnectionInfo) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			m.Uuid = string(b)
		case 2:
			v, err := r.varint()
			if err != nil {
				return err
			}
			m.Psm = uint32(v)
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeviceConnectionInfo is a Device plus whichever transports it currently
// advertises. At least one of Tcp/Ble is expected to be set by callers;
// neither unmarshal nor the discovery registry enforces that.
type DeviceConnectionInfo struct {
	Device *Device
	Tcp    *TcpConnectionInfo
	Ble    *BluetoothLeConnectionInfo
}

func (m *DeviceConnectionInfo) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *DeviceConnectionInfo) MarshalTo(dst []byte) ([]byte, error) {
	if m.Device != nil {
		body, err := m.Device.Marshal()
		if err != nil {
			return nil, err
		}
		dst = appendMessageField(dst, 1, body)
	}
	if m.Tcp != nil {
		body, err := m.Tcp.Marshal()
		if err != nil {
			return nil, err
		}
		dst = appendMessageField(dst, 2, body)
	}
	if m.Ble != nil {
		body, err := m.Ble.Marshal()
		if err != nil {
			return nil, err
		}
		dst = appendMessageField(dst, 3, body)
	}
	return dst, nil
}

func (m *DeviceConnectionInfo) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			d := new(Device)
			if err := d.Unmarshal(b); err != nil {
				return err
			}
			m.Device = d
		case 2:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			t := new(TcpConnectionInfo)
			if err := t.Unmarshal(b); err != nil {
				return err
			}
			m.Tcp = t
		case 3:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			bl := new(BluetoothLeConnectionInfo)
			if err := bl.Unmarshal(b); err != nil {
				return err
			}
			m.Ble = bl
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeviceDiscoveryMessage is the payload carried by a BLE advertisement: it
// is a oneof of a full DeviceConnectionInfo or a bare device id going
// offline.
type DeviceDiscoveryMessage struct {
	ConnectionInfo  *DeviceConnectionInfo
	OfflineDeviceId *string
}

func (m *DeviceDiscoveryMessage) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *DeviceDiscoveryMessage) MarshalTo(dst []byte) ([]byte, error) {
	switch {
	case m.ConnectionInfo != nil:
		body, err := m.ConnectionInfo.Marshal()
		if err != nil {
			return nil, err
		}
		dst = appendMessageField(dst, 1, body)
	case m.OfflineDeviceId != nil:
		dst = appendOptionalStringField(dst, 2, m.OfflineDeviceId)
	}
	return dst, nil
}

func (m *DeviceDiscoveryMessage) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			info := new(DeviceConnectionInfo)
			if err := info.Unmarshal(b); err != nil {
				return err
			}
			m.ConnectionInfo = info
		case 2:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			s := string(b)
			m.OfflineDeviceId = &s
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	if m.ConnectionInfo == nil && m.OfflineDeviceId == nil {
		return ErrMissingOneof
	}
	return nil
}

// EncryptionRequest carries the initiator's ephemeral X25519 public key.
type EncryptionRequest struct {
	PublicKey []byte
}

func (m *EncryptionRequest) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *EncryptionRequest) MarshalTo(dst []byte) ([]byte, error) {
	dst = appendBytesField(dst, 1, m.PublicKey)
	return dst, nil
}

func (m *EncryptionRequest) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			m.PublicKey = append([]byte(nil), b...)
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// EncryptionResponse carries the responder's ephemeral X25519 public key
// and the IV the responder has chosen for the session's XChaCha20 stream.
type EncryptionResponse struct {
	PublicKey []byte
	Iv        []byte
}

func (m *EncryptionResponse) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *EncryptionResponse) MarshalTo(dst []byte) ([]byte, error) {
	dst = appendBytesField(dst, 1, m.PublicKey)
	dst = appendBytesField(dst, 2, m.Iv)
	return dst, nil
}

func (m *EncryptionResponse) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			m.PublicKey = append([]byte(nil), b...)
		case 2:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			m.Iv = append([]byte(nil), b...)
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// FileTransferIntent declares an upcoming file transfer.
type FileTransferIntent struct {
	FileName *string
	FileSize uint64
	Multiple bool
}

func (m *FileTransferIntent) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *FileTransferIntent) MarshalTo(dst []byte) ([]byte, error) {
	dst = appendOptionalStringField(dst, 1, m.FileName)
	dst = appendVarintField(dst, 2, m.FileSize)
	dst = appendBoolField(dst, 3, m.Multiple)
	return dst, nil
}

func (m *FileTransferIntent) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			s := string(b)
			m.FileName = &s
		case 2:
			v, err := r.varint()
			if err != nil {
				return err
			}
			m.FileSize = v
		case 3:
			v, err := r.varint()
			if err != nil {
				return err
			}
			m.Multiple = v != 0
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClipboardTransferIntent declares an upcoming clipboard text transfer.
type ClipboardTransferIntent struct {
	Text string
}

func (m *ClipboardTransferIntent) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *ClipboardTransferIntent) MarshalTo(dst []byte) ([]byte, error) {
	dst = appendStringField(dst, 1, m.Text)
	return dst, nil
}

func (m *ClipboardTransferIntent) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			m.Text = string(b)
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

// TransferRequest is the first message sent over the encrypted stream: the
// sender's Device plus a oneof describing what it wants to send.
type TransferRequest struct {
	Device                  *Device
	FileTransferIntent      *FileTransferIntent
	ClipboardTransferIntent *ClipboardTransferIntent
}

func (m *TransferRequest) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *TransferRequest) MarshalTo(dst []byte) ([]byte, error) {
	if m.Device != nil {
		body, err := m.Device.Marshal()
		if err != nil {
			return nil, err
		}
		dst = appendMessageField(dst, 1, body)
	}
	switch {
	case m.FileTransferIntent != nil:
		body, err := m.FileTransferIntent.Marshal()
		if err != nil {
			return nil, err
		}
		dst = appendMessageField(dst, 2, body)
	case m.ClipboardTransferIntent != nil:
		body, err := m.ClipboardTransferIntent.Marshal()
		if err != nil {
			return nil, err
		}
		dst = appendMessageField(dst, 3, body)
	}
	return dst, nil
}

func (m *TransferRequest) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			d := new(Device)
			if err := d.Unmarshal(b); err != nil {
				return err
			}
			m.Device = d
		case 2:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			ft := new(FileTransferIntent)
			if err := ft.Unmarshal(b); err != nil {
				return err
			}
			m.FileTransferIntent = ft
		case 3:
			b, err := r.bytes()
			if err != nil {
				return err
			}
			ct := new(ClipboardTransferIntent)
			if err := ct.Unmarshal(b); err != nil {
				return err
			}
			m.ClipboardTransferIntent = ct
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	if m.FileTransferIntent == nil && m.ClipboardTransferIntent == nil {
		return ErrMissingOneof
	}
	return nil
}

// TransferRequestResponse carries the receiving user's consent decision.
type TransferRequestResponse struct {
	Accepted bool
}

func (m *TransferRequestResponse) Marshal() ([]byte, error) {
	return m.MarshalTo(nil)
}

func (m *TransferRequestResponse) MarshalTo(dst []byte) ([]byte, error) {
	dst = appendBoolField(dst, 1, m.Accepted)
	return dst, nil
}

func (m *TransferRequestResponse) Unmarshal(data []byte) error {
	r := newFieldReader(data)
	for !r.done() {
		field, wireType, err := r.tag()
		if err != nil {
			return err
		}
		switch field {
		case 1:
			v, err := r.varint()
			if err != nil {
				return err
			}
			m.Accepted = v != 0
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
	return nil
}

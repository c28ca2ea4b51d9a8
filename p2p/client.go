package p2p

// ProtoVersion is the wire protocol version this node speaks.
const ProtoVersion = 1

// request issues one request and reads back one response, over its own
// short-lived TCP connection.
func request(addr AddrInfo, command string, payload []byte) (*Envelope, error) {
	conn, err := dialNoDelay(addr.key())
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := WriteEnvelope(conn, command, payload); err != nil {
		return nil, err
	}
	return ReadEnvelope(conn)
}

// oneWay issues a fire-and-forget message: the request is written and the
// connection closed without reading any response.
func oneWay(addr AddrInfo, command string, payload []byte) error {
	conn, err := dialNoDelay(addr.key())
	if err != nil {
		return err
	}
	defer conn.Close()
	return WriteEnvelope(conn, command, payload)
}

// SendGetAddr performs the GetAddr RPC against addr.
func SendGetAddr(addr AddrInfo, req GetAddrRequest) (*GetAddrResponse, error) {
	env, err := request(addr, CmdGetAddr, req.Marshal())
	if err != nil {
		return nil, err
	}
	return UnmarshalGetAddrResponse(env.Payload)
}

// SendAdvertise fires the one-way Advertise message at addr.
func SendAdvertise(addr AddrInfo, req AdvertiseRequest) error {
	return oneWay(addr, CmdAdvertise, req.Marshal())
}

// SendGetBlocks performs the GetBlocks RPC against addr.
func SendGetBlocks(addr AddrInfo, req GetBlocksRequest) (*GetBlocksResponse, error) {
	env, err := request(addr, CmdGetBlocks, req.Marshal())
	if err != nil {
		return nil, err
	}
	return UnmarshalGetBlocksResponse(env.Payload)
}

// SendNewTxn fires the one-way NewTxn message at addr.
func SendNewTxn(addr AddrInfo, req NewTxnRequest) error {
	return oneWay(addr, CmdNewTxn, req.Marshal())
}

// SendNewBlock fires the one-way NewBlock message at addr.
func SendNewBlock(addr AddrInfo, req NewBlockRequest) error {
	return oneWay(addr, CmdNewBlock, req.Marshal())
}

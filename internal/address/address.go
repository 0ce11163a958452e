package address

import (
	"errors"
	"net"
	"strconv"
)

// DefaultHost is used when only the port is given.
const DefaultHost = "0.0.0.0"

var (
	ErrNoPort  = errors.New("no port given")
	ErrBadPort = errors.New("bad port")
)

type Address struct {
	Host string
	Port uint16
}

// Parse splits the address into host and port. A missing host means listening on every
// interface.
func Parse(addr string) (Address, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && addrErr.Err == "missing port in address" {
			return Address{}, ErrNoPort
		}

		return Address{}, err
	}

	if len(port) == 0 {
		return Address{}, ErrNoPort
	}

	num, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return Address{}, ErrBadPort
	}

	if len(host) == 0 {
		host = DefaultHost
	}

	return Address{Host: host, Port: uint16(num)}, nil
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

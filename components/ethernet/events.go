package ethernet

// The platform invokes these handlers on its own goroutine with the component as `arg`. They only
// flip flags and log; all address work happens in Loop.

func handleEthEvent(arg interface{}, base EventBase, id EventID, data interface{}) {
	w, ok := arg.(*W5500)
	if !ok {
		return
	}
	switch id {
	case EthEventStart:
		w.logger.Info("ethernet started")
		w.started.Store(true)
	case EthEventStop:
		w.logger.Info("ethernet stopped")
		w.started.Store(false)
	case EthEventConnected:
		w.logger.Info("ethernet link up")
		if driver, ok := data.(Driver); ok {
			if mac, err := driver.MACAddress(); err == nil {
				w.logger.Infow("ethernet hardware address", "mac", mac.String())
			}
		}
		w.linkConnected.Store(true)
	case EthEventDisconnected:
		w.logger.Info("ethernet link down")
		w.linkConnected.Store(false)
	default:
	}
}

func handleGotIP(arg interface{}, base EventBase, id EventID, data interface{}) {
	w, ok := arg.(*W5500)
	if !ok {
		return
	}
	w.gotAddress.Store(true)
	info, ok := data.(IPInfo)
	if !ok {
		w.logger.Info("ethernet got ip address")
		return
	}
	w.logger.Infow("ethernet got ip address",
		"ip", info.IP.String(),
		"mask", info.Netmask.String(),
		"gw", info.Gateway.String(),
	)
}

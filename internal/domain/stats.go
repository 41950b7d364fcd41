package domain

// DeriveStats merges ad-platform spend metrics with order-side revenue
// metrics and computes the full derived stat set. Cost-per-X ratios fall back
// to spend on a zero denominator; revenue ratios fall back to zero. Every
// field is finite and truncated to three decimals.
func DeriveStats(spend SpendStats, revenue RevenueStats) MergedStats {
	fbCustomers := spend.FBSales
	fbRevenue := spend.FBMade

	// The order side has no independent click/lead/spend signal; mirror the
	// platform values so both stat families stay comparable.
	roasClicks := spend.FBClicks
	roasLeads := spend.FBLeads
	roasSpend := spend.FBSpend

	fbCostPerSale := SafeDiv(spend.FBSpend, spend.FBSales, spend.FBSpend)
	roasCostPerSale := SafeDiv(spend.FBSpend, revenue.RoasSales, spend.FBSpend)
	fbAOV := SafeDiv(fbRevenue, spend.FBSales, 0)
	roasAOV := SafeDiv(revenue.RoasRevenue, revenue.RoasCustomers, 0)

	return MergedStats{
		FBClicks:      NumOrZero(spend.FBClicks),
		FBLeads:       NumOrZero(spend.FBLeads),
		FBSales:       NumOrZero(spend.FBSales),
		FBCustomers:   NumOrZero(fbCustomers),
		FBSpend:       Fixed3(spend.FBSpend),
		FBMade:        Fixed3(spend.FBMade),
		FBRevenue:     Fixed3(fbRevenue),
		RoasClicks:    NumOrZero(roasClicks),
		RoasLeads:     NumOrZero(roasLeads),
		RoasSales:     NumOrZero(revenue.RoasSales),
		RoasCustomers: NumOrZero(revenue.RoasCustomers),
		RoasRevenue:   Fixed3(revenue.RoasRevenue),
		RoasSpend:     Fixed3(roasSpend),

		FBRoas:                      Fixed3(SafeDiv(fbRevenue, spend.FBSpend, 0)),
		Roas:                        Fixed3(SafeDiv(revenue.RoasRevenue, spend.FBSpend, 0)),
		FBCostPerSale:               Fixed3(fbCostPerSale),
		RoasCostPerSale:             Fixed3(roasCostPerSale),
		FBCostPerLead:               Fixed3(SafeDiv(spend.FBSpend, spend.FBLeads, spend.FBSpend)),
		RoasCostPerLead:             Fixed3(SafeDiv(spend.FBSpend, roasLeads, spend.FBSpend)),
		FBCostPerCustomer:           Fixed3(SafeDiv(spend.FBSpend, revenue.RoasCustomers, spend.FBSpend)),
		RoasCostPerCustomer:         Fixed3(SafeDiv(spend.FBSpend, revenue.RoasCustomers, spend.FBSpend)),
		FBAverageOrderValue:         Fixed3(fbAOV),
		RoasAverageOrderValue:       Fixed3(roasAOV),
		FBMargin:                    Fixed3(NumOrZero(fbAOV - fbCostPerSale)),
		RoasMargin:                  Fixed3(NumOrZero(roasAOV - roasCostPerSale)),
		FBAverageSalesPerCustomer:   Fixed3(SafeDiv(spend.FBSales, fbCustomers, 0)),
		RoasAverageSalesPerCustomer: Fixed3(SafeDiv(revenue.RoasSales, revenue.RoasCustomers, 0)),
	}
}

// SumSpendStats accumulates spend metrics across assets, recomputing the
// aggregate ROAS from the summed revenue and spend.
func SumSpendStats(stats []SpendStats) SpendStats {
	var out SpendStats
	for _, s := range stats {
		out.FBClicks += NumOrZero(s.FBClicks)
		out.FBSpend += NumOrZero(s.FBSpend)
		out.FBMade += NumOrZero(s.FBMade)
		out.FBSales += NumOrZero(s.FBSales)
		out.FBLeads += NumOrZero(s.FBLeads)
	}
	out.FBSpend = Fixed3(out.FBSpend)
	out.FBMade = Fixed3(out.FBMade)
	out.FBRoas = Fixed3(SafeDiv(out.FBMade, out.FBSpend, 0))
	return out
}

// GroupRevenueStats rolls a group of attributed orders up into revenue
// metrics: revenue is the summed cart totals, customers the order count, and
// sales the line-item count.
func GroupRevenueStats(orders []OrderRecord) RevenueStats {
	var out RevenueStats
	for _, order := range orders {
		out.RoasRevenue += CartTotal(order.Cart)
		out.RoasSales += float64(len(order.Cart))
	}
	out.RoasCustomers = float64(len(orders))
	out.RoasRevenue = Fixed3(out.RoasRevenue)
	return out
}

// SumRevenueStats accumulates revenue metrics across groups.
func SumRevenueStats(stats []RevenueStats) RevenueStats {
	var out RevenueStats
	for _, s := range stats {
		out.RoasClicks += NumOrZero(s.RoasClicks)
		out.RoasSales += NumOrZero(s.RoasSales)
		out.RoasCustomers += NumOrZero(s.RoasCustomers)
		out.RoasLeads += NumOrZero(s.RoasLeads)
		out.RoasRevenue += NumOrZero(s.RoasRevenue)
		out.RoasSpend += NumOrZero(s.RoasSpend)
	}
	out.RoasRevenue = Fixed3(out.RoasRevenue)
	out.RoasSpend = Fixed3(out.RoasSpend)
	return out
}

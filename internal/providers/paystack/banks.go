package paystack

// DefaultDedicatedAccountBanks is the ordered candidate list for dedicated
// account creation. The first bank that accepts wins.
var DefaultDedicatedAccountBanks = []string{"wema-bank", "titan-paystack"}

// FallbackBanks is the static bank list used when the live list call fails.
func FallbackBanks() []Bank {
	return []Bank{
		{Name: "Access Bank", Slug: "access-bank", Code: "044"},
		{Name: "Ecobank Nigeria", Slug: "ecobank-nigeria", Code: "050"},
		{Name: "Fidelity Bank", Slug: "fidelity-bank", Code: "070"},
		{Name: "First Bank of Nigeria", Slug: "first-bank-of-nigeria", Code: "011"},
		{Name: "First City Monument Bank", Slug: "first-city-monument-bank", Code: "214"},
		{Name: "Guaranty Trust Bank", Slug: "guaranty-trust-bank", Code: "058"},
		{Name: "Keystone Bank", Slug: "keystone-bank", Code: "082"},
		{Name: "Kuda Bank", Slug: "kuda-bank", Code: "50211"},
		{Name: "Opay", Slug: "paycom", Code: "999992"},
		{Name: "PalmPay", Slug: "palmpay", Code: "999991"},
		{Name: "Polaris Bank", Slug: "polaris-bank", Code: "076"},
		{Name: "Providus Bank", Slug: "providus-bank", Code: "101"},
		{Name: "Stanbic IBTC Bank", Slug: "stanbic-ibtc-bank", Code: "221"},
		{Name: "Sterling Bank", Slug: "sterling-bank", Code: "232"},
		{Name: "Union Bank of Nigeria", Slug: "union-bank-of-nigeria", Code: "032"},
		{Name: "United Bank For Africa", Slug: "united-bank-for-africa", Code: "033"},
		{Name: "Unity Bank", Slug: "unity-bank", Code: "215"},
		{Name: "Wema Bank", Slug: "wema-bank", Code: "035"},
		{Name: "Zenith Bank", Slug: "zenith-bank", Code: "057"},
	}
}

/*

Package model provides hyper-parameters management, the base of rating models and regression metrics.

	* Rating models include: MF (package model/mf)
	* Regression metrics include: RMSE, MAE, MSE, R-Squared

*/
package model
